package memory

import (
	"context"
	"testing"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

func TestStorage_SchedulesAreCopied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := New(time.UTC)

	schedules := []persistence.ScheduledLock{{ID: "schedule_a", AppPackageNames: []string{"com.a"}, IsEnabled: true}}
	if err := storage.SaveSchedules(ctx, schedules); err != nil {
		t.Fatalf("SaveSchedules failed: %v", err)
	}
	schedules[0].AppPackageNames[0] = "mutated"

	loaded, err := storage.LoadSchedules(ctx)
	if err != nil {
		t.Fatalf("LoadSchedules failed: %v", err)
	}
	if loaded[0].AppPackageNames[0] != "com.a" {
		t.Fatalf("stored schedule aliased caller slice: %#v", loaded)
	}
}

func TestStorage_LegacyDocument(t *testing.T) {
	t.Parallel()

	storage := New(time.UTC)
	storage.SetScheduleDocument([]byte(`[{"id":"s1","userId":"local_user","appPackageNames":["com.a"],` +
		`"scheduleConfig":{"startTime":"09:00","endTime":"10:00","selectedDays":[true]},"isEnabled":true,"createdAt":0}]`))

	loaded, err := storage.LoadSchedules(context.Background())
	if err != nil {
		t.Fatalf("LoadSchedules failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].OwnerID != "local_user" || !loaded[0].ScheduleConfig.SelectedDays[0] {
		t.Fatalf("unexpected schedules: %#v", loaded)
	}
}

func TestStorage_Retention(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := New(time.UTC)
	at := time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

	for _, day := range []string{"2024-03-02", "2024-03-04", "2024-03-03"} {
		sample := persistence.UsageSample{PackageName: "com.a", DurationMs: 10, Day: day, At: at}
		if err := storage.RecordUsage(ctx, sample, 2); err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}
	}
	days, _ := storage.ListDailyUsage(ctx)
	if len(days) != 2 || days[0].Date != "2024-03-03" || days[1].Date != "2024-03-04" {
		t.Fatalf("unexpected retained days: %#v", days)
	}
	apps, _ := storage.ListAppUsage(ctx)
	if len(apps) != 1 || apps[0].TotalTimeMs != 30 {
		t.Fatalf("unexpected app totals: %#v", apps)
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := storage.AppendLockEvent(ctx, persistence.LockEvent{ID: id}, 2); err != nil {
			t.Fatalf("AppendLockEvent failed: %v", err)
		}
	}
	events, _ := storage.ListLockEvents(ctx)
	if len(events) != 2 || events[0].ID != "b" {
		t.Fatalf("unexpected retained events: %#v", events)
	}
	if err := storage.AppendLockEvent(ctx, persistence.LockEvent{ID: "c"}, 2); err != persistence.ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestStorage_BlockedEventsAndQuotes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := New(time.UTC)

	for _, pkg := range []string{"com.a", "com.b", "com.c"} {
		if err := storage.AppendBlockedEvent(ctx, persistence.BlockedEvent{PackageName: pkg}, 2); err != nil {
			t.Fatalf("AppendBlockedEvent failed: %v", err)
		}
	}
	blocked, _ := storage.ListBlockedEvents(ctx)
	if len(blocked) != 2 || blocked[0].PackageName != "com.b" {
		t.Fatalf("unexpected retained blocked events: %#v", blocked)
	}

	if err := storage.AddCustomQuote(ctx, persistence.CustomQuote{ID: "q1", Text: "one"}); err != nil {
		t.Fatalf("AddCustomQuote failed: %v", err)
	}
	if err := storage.AddCustomQuote(ctx, persistence.CustomQuote{ID: "q1", Text: "again"}); err != persistence.ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	listed, _ := storage.ListCustomQuotes(ctx)
	if err := storage.DeleteCustomQuote(ctx, "q1"); err != nil {
		t.Fatalf("DeleteCustomQuote failed: %v", err)
	}
	if len(listed) != 1 || listed[0].Text != "one" {
		t.Fatalf("listed quotes must survive a later delete, got %#v", listed)
	}
	if err := storage.DeleteCustomQuote(ctx, "q1"); err != persistence.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, ok, _ := storage.LoadQuoteSettings(ctx); ok {
		t.Fatalf("expected no settings before the first save")
	}
	want := persistence.QuoteSettings{Category: "Focus", Source: "custom"}
	if err := storage.SaveQuoteSettings(ctx, want); err != nil {
		t.Fatalf("SaveQuoteSettings failed: %v", err)
	}
	if got, ok, _ := storage.LoadQuoteSettings(ctx); !ok || got != want {
		t.Fatalf("expected %#v, got %#v", want, got)
	}
}
