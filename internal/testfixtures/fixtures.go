package testfixtures

import (
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/persistence"
	"github.com/example/focusguard/internal/recurrence"
)

var scheduleCounter uint64

// referenceTime is a Monday at noon.
var referenceTime = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Weekdays builds a SelectedDays array from Monday-based indexes.
func Weekdays(days ...time.Weekday) [7]bool {
	var selected [7]bool
	for _, day := range days {
		selected[recurrence.MondayIndex(day)] = true
	}
	return selected
}

// EveryDay selects all seven days.
func EveryDay() [7]bool {
	return [7]bool{true, true, true, true, true, true, true}
}

// RecurringConfig returns a weekly config active between start and end on days.
func RecurringConfig(start, end string, days ...time.Weekday) recurrence.Config {
	return recurrence.Config{StartTime: start, EndTime: end, SelectedDays: Weekdays(days...)}
}

// OneTimeConfig returns a config bound to a single date.
func OneTimeConfig(date, start, end string) recurrence.Config {
	return recurrence.Config{StartDate: date, StartTime: start, EndTime: end}
}

// ScheduleFixture is a deterministic schedule record.
type ScheduleFixture struct {
	ID              string
	OwnerID         string
	AppPackageNames []string
	ScheduleConfig  recurrence.Config
	IsEnabled       bool
	CreatedAt       time.Time
}

// ScheduleOption configures the generated schedule fixture.
type ScheduleOption func(*ScheduleFixture)

// NewScheduleFixture returns an enabled Monday 09:00-17:00 schedule with optional overrides.
func NewScheduleFixture(opts ...ScheduleOption) ScheduleFixture {
	idx := atomic.AddUint64(&scheduleCounter, 1)
	fixture := ScheduleFixture{
		ID:              fmt.Sprintf("schedule_fixture-%03d", idx),
		OwnerID:         application.DefaultOwnerID,
		AppPackageNames: []string{fmt.Sprintf("com.example.app%03d", idx)},
		ScheduleConfig:  RecurringConfig("09:00", "17:00", time.Monday),
		IsEnabled:       true,
		CreatedAt:       referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithScheduleID overrides the identifier.
func WithScheduleID(id string) ScheduleOption {
	return func(f *ScheduleFixture) { f.ID = id }
}

// WithApps overrides the locked packages.
func WithApps(packages ...string) ScheduleOption {
	return func(f *ScheduleFixture) { f.AppPackageNames = slices.Clone(packages) }
}

// WithConfig overrides the schedule config.
func WithConfig(cfg recurrence.Config) ScheduleOption {
	return func(f *ScheduleFixture) { f.ScheduleConfig = cfg }
}

// WithEnabled overrides the enabled flag.
func WithEnabled(enabled bool) ScheduleOption {
	return func(f *ScheduleFixture) { f.IsEnabled = enabled }
}

// Persistence converts the fixture into a stored record.
func (f ScheduleFixture) Persistence() persistence.ScheduledLock {
	return persistence.ScheduledLock{
		ID:              f.ID,
		OwnerID:         f.OwnerID,
		AppPackageNames: slices.Clone(f.AppPackageNames),
		ScheduleConfig:  f.ScheduleConfig,
		IsEnabled:       f.IsEnabled,
		CreatedAt:       f.CreatedAt,
	}
}

// Input converts the fixture into an Add request.
func (f ScheduleFixture) Input() application.ScheduleInput {
	return application.ScheduleInput{
		AppPackageNames: slices.Clone(f.AppPackageNames),
		ScheduleConfig:  f.ScheduleConfig,
	}
}
