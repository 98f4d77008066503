package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/testfixtures"
)

type countingUnlocks struct {
	count int
}

func (c *countingUnlocks) RecordUnlock(context.Context) error {
	c.count++
	return nil
}

func TestEventRouter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	services := testfixtures.NewServices()
	unlocks := &countingUnlocks{}
	router := NewEventRouter(services.Locks, unlocks, testfixtures.DiscardLogger())
	now := testfixtures.ReferenceTime()

	if _, err := services.Locks.LockNow(ctx, "com.a", application.Minutes(30)); err != nil {
		t.Fatalf("LockNow returned error: %v", err)
	}

	router.OnForegroundAppChanged(ctx, "com.b", "B", now)
	router.OnForegroundAppChanged(ctx, "com.c", "C", now.Add(time.Minute))
	router.OnEmergencyUnlock(ctx, "com.a")
	router.OnEmergencyUnlock(ctx, "com.unknown")
	router.OnDeviceUnlocked(ctx)

	if usage := services.Activity.Usage(); len(usage) != 1 || usage[0].PackageName != "com.b" {
		t.Fatalf("expected usage for com.b, got %#v", usage)
	}
	locked, err := services.Locks.ComputeLockedSet(ctx, now)
	if err != nil {
		t.Fatalf("ComputeLockedSet returned error: %v", err)
	}
	if len(locked) != 0 {
		t.Fatalf("expected emergency unlock to release com.a, got %v", locked)
	}
	if events := services.Activity.LockEvents(); len(events) != 1 || events[0].WasSuccessful {
		t.Fatalf("expected one bypass event, got %#v", events)
	}
	if unlocks.count != 1 {
		t.Fatalf("expected one unlock counted, got %d", unlocks.count)
	}
}
