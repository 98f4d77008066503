package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/insights"
	"github.com/example/focusguard/internal/persistence"
	"github.com/example/focusguard/internal/persistence/sqlite/migration"
	"github.com/example/focusguard/internal/recurrence"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4A90E2")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1).
			Width(36)

	dayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
)

func (c *cli) printSuccess(format string, args ...any) {
	fmt.Fprintln(c.out, successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

func (c *cli) printJSON(v any) error {
	encoder := json.NewEncoder(c.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (c *cli) printTable(title string, headers []string, rows [][]string) {
	fmt.Fprintln(c.out, titleStyle.Render(title))
	if len(rows) == 0 {
		fmt.Fprintln(c.out, mutedStyle.Render("  nothing to show"))
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(c.out, t.Render())
}

func (c *cli) printSchedules(schedules []application.Schedule) error {
	if c.jsonOut {
		return c.printJSON(schedules)
	}
	rows := make([][]string, 0, len(schedules))
	for _, s := range schedules {
		rows = append(rows, []string{
			s.ID,
			strings.Join(s.AppPackageNames, ", "),
			describeWindow(s.ScheduleConfig),
			strconv.FormatBool(s.IsEnabled),
		})
	}
	c.printTable("Schedules", []string{"ID", "Apps", "Window", "Enabled"}, rows)
	return nil
}

func describeWindow(cfg recurrence.Config) string {
	window := cfg.StartTime + "-" + cfg.EndTime
	if !cfg.Recurring() {
		date := cfg.StartDate
		if cfg.EndDate != "" && cfg.EndDate != cfg.StartDate {
			date += ".." + cfg.EndDate
		}
		return date + " " + window
	}
	days := make([]string, 0, 7)
	for i, selected := range cfg.SelectedDays {
		if selected {
			days = append(days, dayLabels[i])
		}
	}
	if len(days) == 7 {
		return "daily " + window
	}
	return strings.Join(days, ",") + " " + window
}

func (c *cli) printLocks(entries []application.LockEntry, now time.Time) error {
	if c.jsonOut {
		return c.printJSON(entries)
	}
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		remaining := "until unlocked"
		if minutes := application.MinutesRemaining(entry, now); minutes != nil {
			remaining = fmt.Sprintf("%d min", *minutes)
		}
		if entry.Source == application.SourceSchedule {
			remaining = "while scheduled"
		}
		rows = append(rows, []string{entry.PackageName, string(entry.Source), remaining})
	}
	c.printTable("Locked apps", []string{"Package", "Source", "Remaining"}, rows)
	return nil
}

func (c *cli) printBlocked(events []persistence.BlockedEvent) error {
	if c.jsonOut {
		return c.printJSON(events)
	}
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		rows = append(rows, []string{event.BlockedAt.Local().Format(time.DateTime), event.PackageName, event.AppName})
	}
	c.printTable("Blocked launches", []string{"When", "Package", "App"}, rows)
	return nil
}

func (c *cli) printQuotes(quotes []application.Quote) error {
	if c.jsonOut {
		return c.printJSON(quotes)
	}
	rows := make([][]string, 0, len(quotes))
	for _, quote := range quotes {
		rows = append(rows, []string{quote.ID, quote.Category, quote.Text, quote.Author})
	}
	c.printTable("Quotes", []string{"ID", "Category", "Quote", "Author"}, rows)
	return nil
}

func (c *cli) printCards(period insights.Period, cards []insights.Card) error {
	if c.jsonOut {
		return c.printJSON(cards)
	}
	fmt.Fprintln(c.out, titleStyle.Render("Insights: "+string(period)))
	boxes := make([]string, 0, len(cards))
	for _, card := range cards {
		body := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(card.Color)).Render(card.Value)
		if card.TrendValue != "" {
			body += " " + mutedStyle.Render(string(card.Trend)+" "+card.TrendValue)
		}
		boxes = append(boxes, cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			headerStyle.UnsetPadding().Render(card.Title),
			body,
			mutedStyle.Render(card.Description),
		)))
	}
	fmt.Fprintln(c.out, lipgloss.JoinVertical(lipgloss.Left, boxes...))
	return nil
}

func (c *cli) printUsage(apps []persistence.AppUsage, daily []persistence.DailyUsage) error {
	if c.jsonOut {
		return c.printJSON(map[string]any{"apps": apps, "daily": daily})
	}
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].TotalTimeMs > apps[j].TotalTimeMs })
	appRows := make([][]string, 0, len(apps))
	for _, app := range apps {
		appRows = append(appRows, []string{app.AppName, app.PackageName, insights.FormatDuration(app.TotalTimeMs)})
	}
	c.printTable("Apps", []string{"App", "Package", "Total"}, appRows)

	dayRows := make([][]string, 0, len(daily))
	for _, day := range daily {
		dayRows = append(dayRows, []string{day.Date, insights.FormatDuration(day.TotalTimeMs), strconv.Itoa(day.UnlockCount)})
	}
	c.printTable("Days", []string{"Date", "Screen time", "Unlocks"}, dayRows)
	return nil
}

func (c *cli) printMigrations(status *migration.Status) error {
	if c.jsonOut {
		return c.printJSON(status)
	}
	rows := make([][]string, 0, len(status.Applied))
	for _, applied := range status.Applied {
		rows = append(rows, []string{applied.Version, applied.AppliedAt.Format(time.RFC3339), applied.Checksum[:min(12, len(applied.Checksum))]})
	}
	c.printTable("Migrations", []string{"Version", "Applied", "Checksum"}, rows)
	fmt.Fprintf(c.out, "schema version %s, %d pending\n", status.CurrentVersion, status.PendingCount)
	return nil
}

// describeError flattens service errors into a single line for the terminal.
func describeError(err error) error {
	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		fields := make([]string, 0, len(vErr.FieldErrors))
		for field, msg := range vErr.FieldErrors {
			fields = append(fields, field+": "+msg)
		}
		sort.Strings(fields)
		return fmt.Errorf("invalid input: %s", strings.Join(fields, "; "))
	case errors.Is(err, application.ErrNotFound):
		return errors.New("not found")
	default:
		return err
	}
}
