package insights

import (
	"testing"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "0m"},
		{in: 59 * time.Second, want: "0m"},
		{in: 45 * time.Minute, want: "45m"},
		{in: time.Hour, want: "1h 0m"},
		{in: 2*time.Hour + 30*time.Minute, want: "2h 30m"},
		{in: -5 * time.Millisecond, want: "0m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in.Milliseconds()); got != tt.want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatHour(t *testing.T) {
	t.Parallel()
	tests := map[int]string{0: "12 AM", 1: "1 AM", 11: "11 AM", 12: "12 PM", 13: "1 PM", 23: "11 PM"}
	for in, want := range tests {
		if got := FormatHour(in); got != want {
			t.Fatalf("FormatHour(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		current   float64
		previous  float64
		wantTrend Trend
		wantValue string
	}{
		{name: "no previous usage", current: 100, previous: 0, wantTrend: TrendNeutral, wantValue: "0%"},
		{name: "doubled", current: 200, previous: 100, wantTrend: TrendUp, wantValue: "100%"},
		{name: "halved", current: 50, previous: 100, wantTrend: TrendDown, wantValue: "50%"},
		{name: "five percent is neutral", current: 105, previous: 100, wantTrend: TrendNeutral, wantValue: "5%"},
		{name: "just above five percent", current: 106, previous: 100, wantTrend: TrendUp, wantValue: "6%"},
		{name: "small decrease", current: 97, previous: 100, wantTrend: TrendNeutral, wantValue: "3%"},
	}
	for _, tt := range tests {
		trend, value := Compare(tt.current, tt.previous)
		if trend != tt.wantTrend || value != tt.wantValue {
			t.Fatalf("%s: got %s %s, want %s %s", tt.name, trend, value, tt.wantTrend, tt.wantValue)
		}
	}
}

func TestHourlyHistogram(t *testing.T) {
	t.Parallel()
	at := func(day, hour, minute int) time.Time {
		return time.Date(2024, time.March, day, hour, minute, 0, 0, time.UTC)
	}
	events := []persistence.LockEvent{
		{StartTime: at(4, 10, 30), EndTime: at(4, 12, 15)},
		{StartTime: at(4, 23, 30), EndTime: at(5, 0, 30)},
		{StartTime: at(4, 8, 0), EndTime: at(4, 8, 0)},
	}

	hours := HourlyHistogram(events, time.UTC)
	want := map[int]time.Duration{
		10: 30 * time.Minute,
		11: time.Hour,
		12: 15 * time.Minute,
		23: 30 * time.Minute,
		0:  30 * time.Minute,
	}
	for hour, value := range hours {
		if expected := float64(want[hour].Milliseconds()); value != expected {
			t.Fatalf("hour %d: got %v ms, want %v ms", hour, value, expected)
		}
	}
}

func TestHourlyHistogramUsesLocation(t *testing.T) {
	t.Parallel()
	tokyo := time.FixedZone("JST", 9*60*60)
	start := time.Date(2024, time.March, 4, 1, 0, 0, 0, time.UTC)
	events := []persistence.LockEvent{{StartTime: start, EndTime: start.Add(time.Hour)}}

	hours := HourlyHistogram(events, tokyo)
	if hours[10] != float64(time.Hour.Milliseconds()) {
		t.Fatalf("expected usage in local hour 10, got %v", hours)
	}
}

func TestParsePeriod(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Period{"": Weekly, "daily": Daily, " Monthly ": Monthly, "yearly": Yearly} {
		got, err := ParsePeriod(in)
		if err != nil || got != want {
			t.Fatalf("ParsePeriod(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePeriod("hourly"); err == nil {
		t.Fatalf("expected error for unknown period")
	}
}
