package recurrence

import (
	"testing"
	"time"
)

func BenchmarkEvaluator_IsActive(b *testing.B) {
	engine := NewEvaluator(time.UTC)
	cfg := Config{
		StartTime:    "09:00",
		EndTime:      "17:00",
		SelectedDays: [7]bool{true, false, true, false, true, false, false},
	}
	now := time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !engine.IsActive(true, cfg, now) {
			b.Fatal("expected active window")
		}
	}
}
