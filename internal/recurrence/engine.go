package recurrence

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DateLayout is the calendar day format used by schedule configs and usage keys.
	DateLayout = "2006-01-02"
	// TimeLayout is the time-of-day format used by schedule configs.
	TimeLayout = "15:04"
)

// Config describes when a schedule locks its apps.
//
// SelectedDays is indexed Monday=0 through Sunday=6. A config with no selected
// day is one-time and is bound to StartDate.
type Config struct {
	StartDate    string  `json:"startDate,omitempty"`
	EndDate      string  `json:"endDate,omitempty"`
	StartTime    string  `json:"startTime"`
	EndTime      string  `json:"endTime"`
	SelectedDays [7]bool `json:"selectedDays"`
}

// Recurring reports whether any weekday is selected.
func (c Config) Recurring() bool {
	for _, selected := range c.SelectedDays {
		if selected {
			return true
		}
	}
	return false
}

var (
	// ErrInvalidTime indicates a time of day that is not HH:MM.
	ErrInvalidTime = errors.New("recurrence: time must be HH:MM")
	// ErrInvalidDate indicates a calendar date that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("recurrence: date must be YYYY-MM-DD")
	// ErrEmptyWindow indicates identical start and end times.
	ErrEmptyWindow = errors.New("recurrence: start and end time must differ")
	// ErrDateOrder indicates an end date before the start date.
	ErrDateOrder = errors.New("recurrence: end date must not be before start date")
)

// Problem ties a validation failure to the config field that caused it.
type Problem struct {
	Field string
	Err   error
}

// Validate reports every problem found in cfg. A nil result means the config
// can be evaluated.
func Validate(cfg Config) []Problem {
	var problems []Problem

	start, startErr := ParseTimeOfDay(cfg.StartTime)
	if startErr != nil {
		problems = append(problems, Problem{Field: "startTime", Err: startErr})
	}
	end, endErr := ParseTimeOfDay(cfg.EndTime)
	if endErr != nil {
		problems = append(problems, Problem{Field: "endTime", Err: endErr})
	}
	if startErr == nil && endErr == nil && start == end {
		problems = append(problems, Problem{Field: "endTime", Err: ErrEmptyWindow})
	}

	var startDate, endDate time.Time
	var dateErr error
	if cfg.StartDate != "" {
		if startDate, dateErr = ParseDate(cfg.StartDate, time.UTC); dateErr != nil {
			problems = append(problems, Problem{Field: "startDate", Err: dateErr})
		}
	}
	if cfg.EndDate != "" {
		var err error
		if endDate, err = ParseDate(cfg.EndDate, time.UTC); err != nil {
			problems = append(problems, Problem{Field: "endDate", Err: err})
		} else if cfg.StartDate != "" && dateErr == nil && endDate.Before(startDate) {
			problems = append(problems, Problem{Field: "endDate", Err: ErrDateOrder})
		}
	}

	return problems
}

// ParseTimeOfDay converts HH:MM into minutes after midnight.
func ParseTimeOfDay(value string) (int, error) {
	t, err := time.Parse(TimeLayout, value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ParseDate converts YYYY-MM-DD into midnight of that day in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

// Evaluator decides schedule activity and expiry in a fixed time zone.
type Evaluator struct {
	location *time.Location
}

// NewEvaluator constructs an Evaluator that reads wall-clock times in loc.
// If loc is nil, the process local zone is used.
func NewEvaluator(loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{location: loc}
}

// Location returns the zone used to interpret configs.
func (e *Evaluator) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.Local
	}
	return e.location
}

// Today returns the calendar day key of now in the evaluator's zone.
func (e *Evaluator) Today(now time.Time) string {
	return now.In(e.Location()).Format(DateLayout)
}

// IsActive reports whether a schedule locks its apps at now.
//
// Times are compared at minute granularity against [StartTime, EndTime). When
// EndTime is earlier than StartTime the window spans midnight and the part
// after midnight belongs to the day the window started on. Configs that cannot
// be parsed are never active.
func (e *Evaluator) IsActive(enabled bool, cfg Config, now time.Time) bool {
	if !enabled {
		return false
	}
	loc := e.Location()
	w, err := compile(cfg, loc)
	if err != nil {
		return false
	}

	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()
	day := midnight(local)

	if w.start < w.end {
		if minute < w.start || minute >= w.end {
			return false
		}
		return w.matchesDay(day)
	}

	switch {
	case minute >= w.start:
		return w.matchesDay(day)
	case minute < w.end:
		return w.matchesDay(day.AddDate(0, 0, -1))
	default:
		return false
	}
}

// IsExpired reports whether a schedule can never become active again.
// Recurring schedules never expire. One-time schedules expire at EndTime on
// EndDate, or on StartDate when no end date is set.
func (e *Evaluator) IsExpired(cfg Config, now time.Time) bool {
	if cfg.Recurring() {
		return false
	}
	loc := e.Location()
	w, err := compile(cfg, loc)
	if err != nil {
		return false
	}

	var ref time.Time
	switch {
	case w.hasEnd:
		ref = w.endDate
	case w.hasStart:
		ref = w.startDate
	default:
		return false
	}

	endsAt := time.Date(ref.Year(), ref.Month(), ref.Day(), w.end/60, w.end%60, 0, 0, loc)
	if w.end < w.start {
		endsAt = endsAt.AddDate(0, 0, 1)
	}
	return !now.Before(endsAt)
}

type window struct {
	start, end int
	days       [7]bool
	recurring  bool
	hasStart   bool
	hasEnd     bool
	startDate  time.Time
	endDate    time.Time
}

func compile(cfg Config, loc *time.Location) (window, error) {
	start, err := ParseTimeOfDay(cfg.StartTime)
	if err != nil {
		return window{}, err
	}
	end, err := ParseTimeOfDay(cfg.EndTime)
	if err != nil {
		return window{}, err
	}
	if start == end {
		return window{}, ErrEmptyWindow
	}

	w := window{start: start, end: end, days: cfg.SelectedDays, recurring: cfg.Recurring()}
	if cfg.StartDate != "" {
		if w.startDate, err = ParseDate(cfg.StartDate, loc); err != nil {
			return window{}, err
		}
		w.hasStart = true
	}
	if cfg.EndDate != "" {
		if w.endDate, err = ParseDate(cfg.EndDate, loc); err != nil {
			return window{}, err
		}
		w.hasEnd = true
	}
	return w, nil
}

func (w window) matchesDay(day time.Time) bool {
	if w.recurring {
		return w.days[MondayIndex(day.Weekday())]
	}
	if !w.hasStart {
		return true
	}
	return sameDay(day, w.startDate)
}

// MondayIndex maps a weekday onto the Monday=0 convention of SelectedDays.
func MondayIndex(day time.Weekday) int {
	return (int(day) + 6) % 7
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
