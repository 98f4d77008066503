package insights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/persistence/memory"
	"github.com/example/focusguard/internal/testfixtures"
)

func newTestAggregator(t *testing.T) (*Aggregator, *testfixtures.Clock) {
	t.Helper()
	clock := testfixtures.NewClock(time.Time{})
	storage := memory.New(time.UTC)
	ids := testfixtures.NewIDGenerator("event")
	return NewAggregator(storage, storage, Config{
		Location:    time.UTC,
		Now:         clock.NowFunc(),
		IDGenerator: ids.NextFunc(),
		CacheTTL:    time.Minute,
		Logger:      testfixtures.DiscardLogger(),
	}), clock
}

func cardByID(t *testing.T, cards []Card, id string) Card {
	t.Helper()
	for _, card := range cards {
		if card.ID == id {
			return card
		}
	}
	t.Fatalf("card %q not found in %#v", id, cards)
	return Card{}
}

func TestAggregator_EmptyHistory(t *testing.T) {
	t.Parallel()
	aggregator, _ := newTestAggregator(t)

	cards, err := aggregator.GetInsightCards(context.Background(), Weekly)
	if err != nil {
		t.Fatalf("GetInsightCards returned error: %v", err)
	}
	if len(cards) != 5 {
		t.Fatalf("expected 5 cards, got %d", len(cards))
	}
	wantOrder := []string{"most_used_app", "usage_summary", "usage_trend", "lock_effectiveness", "peak_time"}
	for i, id := range wantOrder {
		if cards[i].ID != id {
			t.Fatalf("card %d: expected %s, got %s", i, id, cards[i].ID)
		}
	}
	if cards[0].Value != "0h 0m" || cards[1].Title != "Weekly Screen Time" {
		t.Fatalf("unexpected defaults %#v %#v", cards[0], cards[1])
	}
	if cards[2].Trend != TrendNeutral || cards[2].TrendValue != "0%" {
		t.Fatalf("expected neutral 0%% trend, got %#v", cards[2])
	}
	if cards[3].Value != "0%" || cards[4].Value != "12 AM" {
		t.Fatalf("unexpected defaults %#v %#v", cards[3], cards[4])
	}
}

func TestAggregator_MostUsedApp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	aggregator, _ := newTestAggregator(t)

	if err := aggregator.RecordAppUsage(ctx, "com.a", "App A", 100*60_000); err != nil {
		t.Fatalf("RecordAppUsage returned error: %v", err)
	}
	if err := aggregator.RecordAppUsage(ctx, "com.b", "App B", 50*60_000); err != nil {
		t.Fatalf("RecordAppUsage returned error: %v", err)
	}

	cards, err := aggregator.GetInsightCards(ctx, Daily)
	if err != nil {
		t.Fatalf("GetInsightCards returned error: %v", err)
	}
	most := cardByID(t, cards, "most_used_app")
	if most.Description != "You've spent the most time on App A" || most.Value != "1h 40m" {
		t.Fatalf("unexpected most used card %#v", most)
	}
	summary := cardByID(t, cards, "usage_summary")
	if summary.Title != "Daily Screen Time" || summary.Value != "2h 30m" || summary.SecondaryValue != "2h 30m" {
		t.Fatalf("unexpected summary card %#v", summary)
	}
}

func TestAggregator_EmptyAppNameKeepsStoredName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	aggregator, _ := newTestAggregator(t)

	if err := aggregator.RecordAppUsage(ctx, "com.a", "App A", 60_000); err != nil {
		t.Fatalf("RecordAppUsage returned error: %v", err)
	}
	if err := aggregator.RecordAppUsage(ctx, "com.a", "", 30_000); err != nil {
		t.Fatalf("RecordAppUsage returned error: %v", err)
	}

	apps, err := aggregator.AppUsage(ctx)
	if err != nil {
		t.Fatalf("AppUsage returned error: %v", err)
	}
	if len(apps) != 1 || apps[0].AppName != "App A" || apps[0].TotalTimeMs != 90_000 {
		t.Fatalf("expected stored name kept, got %#v", apps)
	}
}

func TestAggregator_WeeklyTrend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	aggregator, clock := newTestAggregator(t)
	now := clock.Now()

	clock.Set(time.Date(2024, time.February, 22, 9, 0, 0, 0, time.UTC))
	if err := aggregator.RecordAppUsage(ctx, "com.a", "A", 100*60_000); err != nil {
		t.Fatalf("RecordAppUsage returned error: %v", err)
	}
	clock.Set(time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))
	if err := aggregator.RecordAppUsage(ctx, "com.a", "A", 200*60_000); err != nil {
		t.Fatalf("RecordAppUsage returned error: %v", err)
	}
	clock.Set(now)

	cards, err := aggregator.GetInsightCards(ctx, Weekly)
	if err != nil {
		t.Fatalf("GetInsightCards returned error: %v", err)
	}
	trend := cardByID(t, cards, "usage_trend")
	if trend.Trend != TrendUp || trend.TrendValue != "100%" {
		t.Fatalf("unexpected trend %#v", trend)
	}
	if trend.Description != "Your usage is higher than last week." || trend.Value != "3h 20m" {
		t.Fatalf("unexpected trend text %#v", trend)
	}
}

func TestAggregator_LockEffectivenessAndPeak(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	aggregator, clock := newTestAggregator(t)
	now := clock.Now()

	start := now.Add(-2 * time.Hour)
	if err := aggregator.RecordLockEvent(ctx, "A", "com.a", start, start.Add(90*time.Minute), true); err != nil {
		t.Fatalf("RecordLockEvent returned error: %v", err)
	}
	if err := aggregator.RecordLockEvent(ctx, "A", "com.a", start, start.Add(10*time.Minute), true); err != nil {
		t.Fatalf("RecordLockEvent returned error: %v", err)
	}
	if err := aggregator.RecordLockEvent(ctx, "B", "com.b", start, start, false); err != nil {
		t.Fatalf("RecordLockEvent returned error: %v", err)
	}

	cards, err := aggregator.GetInsightCards(ctx, Daily)
	if err != nil {
		t.Fatalf("GetInsightCards returned error: %v", err)
	}
	effectiveness := cardByID(t, cards, "lock_effectiveness")
	if effectiveness.Value != "67%" || effectiveness.Description != "You respected 2 out of 3 app locks" {
		t.Fatalf("unexpected effectiveness card %#v", effectiveness)
	}
	peak := cardByID(t, cards, "peak_time")
	if peak.Value != "10 AM" {
		t.Fatalf("unexpected peak card %#v", peak)
	}

	events, err := aggregator.LockEvents(ctx)
	if err != nil {
		t.Fatalf("LockEvents returned error: %v", err)
	}
	if len(events) != 3 || events[0].ID != "event-1" {
		t.Fatalf("unexpected events %#v", events)
	}
}

func TestAggregator_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	aggregator, clock := newTestAggregator(t)
	now := clock.Now()

	var vErr *application.ValidationError
	if err := aggregator.RecordAppUsage(ctx, "com.a", "A", -1); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for negative duration, got %v", err)
	}
	if err := aggregator.RecordLockEvent(ctx, "A", "com.a", now, now.Add(-time.Second), true); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for reversed range, got %v", err)
	}
	if _, ok := vErr.FieldErrors["endTime"]; !ok {
		t.Fatalf("expected endTime field error, got %v", vErr.FieldErrors)
	}
	if _, err := aggregator.GetInsightCards(ctx, Period("hourly")); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for unknown period, got %v", err)
	}
}

func TestAggregator_CacheInvalidatedByRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	aggregator, _ := newTestAggregator(t)

	first, err := aggregator.GetInsightCards(ctx, Daily)
	if err != nil {
		t.Fatalf("GetInsightCards returned error: %v", err)
	}
	if err := aggregator.RecordAppUsage(ctx, "com.a", "A", 60_000); err != nil {
		t.Fatalf("RecordAppUsage returned error: %v", err)
	}
	second, err := aggregator.GetInsightCards(ctx, Daily)
	if err != nil {
		t.Fatalf("GetInsightCards returned error: %v", err)
	}
	if first[1].SecondaryValue == second[1].SecondaryValue {
		t.Fatalf("expected recomputed summary after record, got %q twice", second[1].SecondaryValue)
	}
}

func TestAggregator_ResetAndUnlocks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	aggregator, clock := newTestAggregator(t)
	now := clock.Now()

	if err := aggregator.RecordUnlock(ctx); err != nil {
		t.Fatalf("RecordUnlock returned error: %v", err)
	}
	if err := aggregator.RecordUnlock(ctx); err != nil {
		t.Fatalf("RecordUnlock returned error: %v", err)
	}
	if err := aggregator.RecordLockEvent(ctx, "A", "com.a", now, now, true); err != nil {
		t.Fatalf("RecordLockEvent returned error: %v", err)
	}

	daily, err := aggregator.DailyUsage(ctx)
	if err != nil {
		t.Fatalf("DailyUsage returned error: %v", err)
	}
	if len(daily) != 1 || daily[0].UnlockCount != 2 || daily[0].Date != "2024-03-04" {
		t.Fatalf("unexpected daily usage %#v", daily)
	}

	if err := aggregator.Reset(ctx); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	daily, _ = aggregator.DailyUsage(ctx)
	events, _ := aggregator.LockEvents(ctx)
	apps, _ := aggregator.AppUsage(ctx)
	if len(daily) != 0 || len(events) != 0 || len(apps) != 0 {
		t.Fatalf("expected empty history after reset")
	}
}
