package testfixtures

import (
	"context"
	"testing"
	"time"
)

func TestNewServicesUsesDeterministicCollaborators(t *testing.T) {
	services := NewServices()
	ctx := context.Background()

	created, err := services.Schedules.Add(ctx, NewScheduleFixture(WithApps("com.a")).Input())
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if created.ID != "schedule-1" {
		t.Fatalf("expected deterministic id, got %q", created.ID)
	}
	if !created.CreatedAt.Equal(ReferenceTime()) {
		t.Fatalf("expected clock time, got %v", created.CreatedAt)
	}
}

func TestRecordingActivity(t *testing.T) {
	activity := &RecordingActivity{}
	ctx := context.Background()
	start := ReferenceTime()

	_ = activity.RecordAppUsage(ctx, "com.a", "A", 10)
	_ = activity.RecordLockEvent(ctx, "A", "com.a", start, start.Add(time.Minute), true)

	if got := activity.Usage(); len(got) != 1 || got[0].DurationMs != 10 {
		t.Fatalf("unexpected usage %#v", got)
	}
	if got := activity.LockEvents(); len(got) != 1 || !got[0].WasSuccessful {
		t.Fatalf("unexpected events %#v", got)
	}
}

func TestWeekdays(t *testing.T) {
	days := Weekdays(time.Monday, time.Sunday)
	if !days[0] || !days[6] || days[1] {
		t.Fatalf("unexpected selection %v", days)
	}
}
