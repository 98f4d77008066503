package testfixtures

import (
	"testing"
	"time"
)

func TestClock_DefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
	if clock.Now().Weekday() != time.Monday {
		t.Fatalf("expected the reference time to fall on a Monday")
	}
}

func TestClock_AdvanceAndNowFunc(t *testing.T) {
	clock := NewClock(time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC))
	nowFn := clock.NowFunc()

	updated := clock.Advance(30 * time.Minute)
	if want := time.Date(2024, time.March, 4, 12, 30, 0, 0, time.UTC); !updated.Equal(want) {
		t.Fatalf("expected %v, got %v", want, updated)
	}
	if !nowFn().Equal(updated) {
		t.Fatalf("NowFunc did not follow Advance")
	}
}

func TestClock_At(t *testing.T) {
	tests := []struct {
		day   time.Weekday
		clock string
		want  time.Time
	}{
		{day: time.Monday, clock: "10:00", want: time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)},
		{day: time.Wednesday, clock: "10:00", want: time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC)},
		{day: time.Sunday, clock: "23:59", want: time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC)},
	}

	clock := NewClock(time.Time{})
	for _, tt := range tests {
		if got := clock.At(tt.day, tt.clock); !got.Equal(tt.want) {
			t.Fatalf("At(%v, %s) = %v, want %v", tt.day, tt.clock, got, tt.want)
		}
		if got := clock.Now(); got.Weekday() != tt.day {
			t.Fatalf("expected clock on %v, got %v", tt.day, got.Weekday())
		}
	}
}
