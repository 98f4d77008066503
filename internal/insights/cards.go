// Package insights aggregates app usage and lock outcomes into summary cards.
package insights

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/example/focusguard/internal/persistence"
)

// Period selects the window insight cards are computed over.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// ParsePeriod validates a period name. An empty name selects Weekly.
func ParsePeriod(value string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(value))); p {
	case "":
		return Weekly, nil
	case Daily, Weekly, Monthly, Yearly:
		return p, nil
	default:
		return "", fmt.Errorf("insights: unknown period %q", value)
	}
}

func (p Period) days() int {
	switch p {
	case Monthly:
		return 30
	case Yearly:
		return 365
	default:
		return 7
	}
}

func (p Period) comparedTo() string {
	switch p {
	case Daily:
		return "yesterday"
	case Monthly:
		return "last month"
	case Yearly:
		return "last year"
	default:
		return "last week"
	}
}

func (p Period) title() string {
	s := string(p)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Trend is the direction of usage compared with the preceding window.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// Card types.
const (
	TypeMostUsedApp       = "most_used_app"
	TypeWeeklySummary     = "weekly_summary"
	TypeUsageTrend        = "usage_trend"
	TypeLockEffectiveness = "lock_effectiveness"
	TypePeakTime          = "peak_time"
)

// Card is one insight shown to the user.
type Card struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Value          string    `json:"value,omitempty"`
	SecondaryValue string    `json:"secondaryValue,omitempty"`
	Trend          Trend     `json:"trend,omitempty"`
	TrendValue     string    `json:"trendValue,omitempty"`
	Icon           string    `json:"icon,omitempty"`
	Color          string    `json:"color,omitempty"`
	Date           time.Time `json:"date"`
}

type dataset struct {
	apps   []persistence.AppUsage
	daily  []persistence.DailyUsage
	events []persistence.LockEvent
}

// buildCards computes the five cards for period at now. Day keys are read as
// midnight in loc.
func buildCards(data dataset, period Period, now time.Time, loc *time.Location) []Card {
	now = now.In(loc)
	today := startOfDay(now)

	cutoff := today
	if period != Daily {
		cutoff = now.AddDate(0, 0, -period.days())
	}

	var window []persistence.DailyUsage
	for _, day := range data.daily {
		if at, ok := dayStart(day.Date, loc); ok && !at.Before(cutoff) {
			window = append(window, day)
		}
	}
	var events []persistence.LockEvent
	for _, event := range data.events {
		if !event.StartTime.Before(cutoff) {
			events = append(events, event)
		}
	}

	return []Card{
		mostUsedCard(data.apps, window, now),
		summaryCard(window, period, now),
		trendCard(data.daily, period, now, today, loc),
		effectivenessCard(events, now),
		peakTimeCard(events, now, loc),
	}
}

func mostUsedCard(apps []persistence.AppUsage, window []persistence.DailyUsage, now time.Time) Card {
	card := Card{
		ID:          TypeMostUsedApp,
		Type:        TypeMostUsedApp,
		Title:       "Most Used App",
		Description: "No app usage data yet.",
		Value:       "0h 0m",
		Icon:        "apps",
		Color:       "#FFC107",
		Date:        now,
	}
	if len(apps) == 0 || len(window) == 0 {
		return card
	}

	totals := make([]float64, len(apps))
	for i, app := range apps {
		totals[i] = float64(app.TotalTimeMs)
	}
	top := apps[floats.MaxIdx(totals)]
	name := top.AppName
	if name == "" {
		name = top.PackageName
	}
	card.Description = fmt.Sprintf("You've spent the most time on %s", name)
	card.Value = FormatDuration(top.TotalTimeMs)
	return card
}

func summaryCard(window []persistence.DailyUsage, period Period, now time.Time) Card {
	total := sumDaily(window)
	var average float64
	description := "No screen time data yet for this period."
	if len(window) > 0 {
		average = total / float64(len(window))
		description = "Your average daily screen time"
	}
	return Card{
		ID:             "usage_summary",
		Type:           TypeWeeklySummary,
		Title:          period.title() + " Screen Time",
		Description:    description,
		Value:          FormatDuration(int64(average)),
		SecondaryValue: FormatDuration(int64(total)),
		Icon:           "calendar",
		Color:          "#2196F3",
		Date:           now,
	}
}

func trendCard(daily []persistence.DailyUsage, period Period, now, today time.Time, loc *time.Location) Card {
	var currentStart, previousStart time.Time
	if period == Daily {
		currentStart = today
		previousStart = today.AddDate(0, 0, -1)
	} else {
		currentStart = now.AddDate(0, 0, -period.days())
		previousStart = currentStart.AddDate(0, 0, -period.days())
	}

	var current, previous []persistence.DailyUsage
	for _, day := range daily {
		at, ok := dayStart(day.Date, loc)
		if !ok {
			continue
		}
		switch {
		case !at.Before(currentStart):
			current = append(current, day)
		case !at.Before(previousStart):
			previous = append(previous, day)
		}
	}
	currentTotal := sumDaily(current)
	previousTotal := sumDaily(previous)

	trend, trendValue := Compare(currentTotal, previousTotal)
	compared := period.comparedTo()
	description := fmt.Sprintf("No usage data to compare with %s.", compared)
	if previousTotal > 0 {
		switch trend {
		case TrendUp:
			description = fmt.Sprintf("Your usage is higher than %s.", compared)
		case TrendDown:
			description = fmt.Sprintf("Your usage is lower than %s.", compared)
		default:
			description = fmt.Sprintf("Your usage is similar to %s.", compared)
		}
	}

	return Card{
		ID:          TypeUsageTrend,
		Type:        TypeUsageTrend,
		Title:       "Usage Trend",
		Description: description,
		Value:       FormatDuration(int64(currentTotal)),
		Trend:       trend,
		TrendValue:  trendValue,
		Icon:        "trending-up",
		Color:       "#9C27B0",
		Date:        now,
	}
}

// Compare returns the trend of current against previous and the absolute
// rounded percent change. Changes within 5% either way are neutral, as is a
// previous total of zero.
func Compare(current, previous float64) (Trend, string) {
	if previous <= 0 {
		return TrendNeutral, "0%"
	}
	percent := (current - previous) / previous * 100
	trend := TrendNeutral
	switch {
	case percent > 5:
		trend = TrendUp
	case percent < -5:
		trend = TrendDown
	}
	return trend, fmt.Sprintf("%d%%", abs(roundHalfUp(percent)))
}

func effectivenessCard(events []persistence.LockEvent, now time.Time) Card {
	successful := 0
	for _, event := range events {
		if event.WasSuccessful {
			successful++
		}
	}
	card := Card{
		ID:          TypeLockEffectiveness,
		Type:        TypeLockEffectiveness,
		Title:       "Lock Effectiveness",
		Description: "No app locks recorded yet.",
		Value:       "0%",
		Icon:        "lock-closed",
		Color:       "#4CAF50",
		Date:        now,
	}
	if len(events) > 0 {
		rate := float64(successful) / float64(len(events)) * 100
		card.Description = fmt.Sprintf("You respected %d out of %d app locks", successful, len(events))
		card.Value = fmt.Sprintf("%d%%", roundHalfUp(rate))
	}
	return card
}

func peakTimeCard(events []persistence.LockEvent, now time.Time, loc *time.Location) Card {
	hours := HourlyHistogram(events, loc)
	peak := floats.MaxIdx(hours)
	label := FormatHour(peak)

	description := "Not enough data to determine peak usage time."
	if hours[peak] > 0 {
		description = fmt.Sprintf("Your device usage peaks around %s", label)
	}
	return Card{
		ID:          TypePeakTime,
		Type:        TypePeakTime,
		Title:       "Peak Usage Time",
		Description: description,
		Value:       label,
		Icon:        "time",
		Color:       "#FF5722",
		Date:        now,
	}
}

// HourlyHistogram splits every event's duration across the local hours it
// spans and returns milliseconds per hour of day.
func HourlyHistogram(events []persistence.LockEvent, loc *time.Location) []float64 {
	hours := make([]float64, 24)
	for _, event := range events {
		cursor := event.StartTime.In(loc)
		end := event.EndTime.In(loc)
		for cursor.Before(end) {
			next := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), cursor.Hour()+1, 0, 0, 0, loc)
			if !next.After(cursor) {
				next = cursor.Add(time.Hour).Truncate(time.Hour)
			}
			if next.After(end) {
				next = end
			}
			hours[cursor.Hour()] += float64(next.Sub(cursor).Milliseconds())
			cursor = next
		}
	}
	return hours
}

// FormatDuration renders milliseconds as "Xh Ym", or "Ym" below one hour.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	minutes := ms / int64(time.Minute/time.Millisecond)
	hours := minutes / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

// FormatHour renders an hour of day on a 12-hour clock.
func FormatHour(hour int) string {
	switch {
	case hour == 0:
		return "12 AM"
	case hour < 12:
		return fmt.Sprintf("%d AM", hour)
	case hour == 12:
		return "12 PM"
	default:
		return fmt.Sprintf("%d PM", hour-12)
	}
}

func sumDaily(days []persistence.DailyUsage) float64 {
	values := make([]float64, len(days))
	for i, day := range days {
		values[i] = float64(day.TotalTimeMs)
	}
	return floats.Sum(values)
}

func dayStart(date string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(time.DateOnly, date, loc)
	return t, err == nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// roundHalfUp rounds to the nearest integer, halves towards positive infinity.
func roundHalfUp(v float64) int {
	r := int(v)
	if v-float64(r) >= 0.5 {
		r++
	} else if float64(r)-v > 0.5 {
		r--
	}
	return r
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
