package insights

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/logging"
	"github.com/example/focusguard/internal/persistence"
)

const (
	aggregatorService = "insights"

	// DefaultCacheTTL is how long computed cards are reused.
	DefaultCacheTTL = 30 * time.Second
)

// Config carries optional Aggregator collaborators.
type Config struct {
	Location    *time.Location
	Now         func() time.Time
	IDGenerator func() string
	// CacheTTL of zero uses DefaultCacheTTL. A negative value disables caching.
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// Aggregator records usage and lock outcomes and turns them into cards. It
// implements application.ActivityRecorder.
type Aggregator struct {
	usage       persistence.UsageRepository
	events      persistence.LockEventRepository
	loc         *time.Location
	now         func() time.Time
	idGenerator func() string
	logger      *slog.Logger
	cache       *cardCache
}

var _ application.ActivityRecorder = (*Aggregator)(nil)

// NewAggregator wires an Aggregator over the usage and lock event repositories.
func NewAggregator(usage persistence.UsageRepository, events persistence.LockEventRepository, cfg Config) *Aggregator {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Aggregator{
		usage:       usage,
		events:      events,
		loc:         cfg.Location,
		now:         cfg.Now,
		idGenerator: cfg.IDGenerator,
		logger:      cfg.Logger,
		cache:       newCardCache(cfg.CacheTTL, cfg.Now),
	}
}

func (a *Aggregator) serviceLogger(ctx context.Context, operation string) *slog.Logger {
	return logging.Scoped(ctx, a.logger, "service", aggregatorService, operation)
}

func (a *Aggregator) today() string {
	return a.now().In(a.loc).Format(time.DateOnly)
}

// RecordAppUsage adds durationMs to the app total and to today's rollup. An
// empty appName keeps the name stored for the package.
func (a *Aggregator) RecordAppUsage(ctx context.Context, packageName, appName string, durationMs int64) error {
	packageName = strings.TrimSpace(packageName)
	logger := a.serviceLogger(ctx, "record_app_usage")

	fields := map[string]string{}
	if packageName == "" {
		fields["packageName"] = "package name is required"
	}
	if durationMs < 0 {
		fields["durationMs"] = "must not be negative"
	}
	if len(fields) > 0 {
		return &application.ValidationError{FieldErrors: fields}
	}

	now := a.now()
	sample := persistence.UsageSample{
		PackageName: packageName,
		AppName:     appName,
		DurationMs:  durationMs,
		Day:         now.In(a.loc).Format(time.DateOnly),
		At:          now,
	}
	if err := a.usage.RecordUsage(ctx, sample, persistence.RetentionLimit); err != nil {
		err = &application.PersistenceError{Op: "record app usage", Err: err}
		logger.ErrorContext(ctx, "usage record failed", "error", err, "error_kind", application.ErrorKind(err))
		return err
	}
	a.cache.Invalidate()
	logger.DebugContext(ctx, "usage recorded", "package", packageName, "duration_ms", durationMs)
	return nil
}

// RecordUnlock counts one device unlock for today.
func (a *Aggregator) RecordUnlock(ctx context.Context) error {
	if err := a.usage.AddUnlock(ctx, a.today(), persistence.RetentionLimit); err != nil {
		err = &application.PersistenceError{Op: "record unlock", Err: err}
		a.serviceLogger(ctx, "record_unlock").ErrorContext(ctx, "unlock record failed", "error", err)
		return err
	}
	a.cache.Invalidate()
	return nil
}

// RecordLockEvent appends a lock outcome and keeps the newest events.
func (a *Aggregator) RecordLockEvent(ctx context.Context, appName, packageName string, start, end time.Time, wasSuccessful bool) error {
	packageName = strings.TrimSpace(packageName)
	logger := a.serviceLogger(ctx, "record_lock_event")

	fields := map[string]string{}
	if packageName == "" {
		fields["packageName"] = "package name is required"
	}
	if end.Before(start) {
		fields["endTime"] = "must not be before startTime"
	}
	if len(fields) > 0 {
		return &application.ValidationError{FieldErrors: fields}
	}
	if appName == "" {
		appName = packageName
	}

	event := persistence.LockEvent{
		ID:            a.idGenerator(),
		AppName:       appName,
		PackageName:   packageName,
		StartTime:     start,
		EndTime:       end,
		WasSuccessful: wasSuccessful,
	}
	if err := a.events.AppendLockEvent(ctx, event, persistence.RetentionLimit); err != nil {
		err = &application.PersistenceError{Op: "record lock event", Err: err}
		logger.ErrorContext(ctx, "lock event record failed", "error", err, "error_kind", application.ErrorKind(err))
		return err
	}
	a.cache.Invalidate()
	logger.InfoContext(ctx, "lock event recorded", "package", packageName, "successful", wasSuccessful)
	return nil
}

// GetInsightCards returns the cards for period.
func (a *Aggregator) GetInsightCards(ctx context.Context, period Period) ([]Card, error) {
	if _, err := ParsePeriod(string(period)); err != nil || period == "" {
		return nil, application.NewValidationError("period", "must be one of daily, weekly, monthly, yearly")
	}
	if cards, ok := a.cache.Get(period); ok {
		return cards, nil
	}

	data, err := a.load(ctx)
	if err != nil {
		a.serviceLogger(ctx, "get_insight_cards").ErrorContext(ctx, "insight load failed", "error", err)
		return nil, err
	}
	cards := buildCards(data, period, a.now(), a.loc)
	a.cache.Store(period, cards)
	return cards, nil
}

func (a *Aggregator) load(ctx context.Context) (dataset, error) {
	apps, err := a.usage.ListAppUsage(ctx)
	if err != nil {
		return dataset{}, &application.PersistenceError{Op: "list app usage", Err: err}
	}
	daily, err := a.usage.ListDailyUsage(ctx)
	if err != nil {
		return dataset{}, &application.PersistenceError{Op: "list daily usage", Err: err}
	}
	events, err := a.events.ListLockEvents(ctx)
	if err != nil {
		return dataset{}, &application.PersistenceError{Op: "list lock events", Err: err}
	}
	return dataset{apps: apps, daily: daily, events: events}, nil
}

// AppUsage returns the per-app totals.
func (a *Aggregator) AppUsage(ctx context.Context) ([]persistence.AppUsage, error) {
	apps, err := a.usage.ListAppUsage(ctx)
	if err != nil {
		return nil, &application.PersistenceError{Op: "list app usage", Err: err}
	}
	return apps, nil
}

// DailyUsage returns the daily rollups, oldest first.
func (a *Aggregator) DailyUsage(ctx context.Context) ([]persistence.DailyUsage, error) {
	daily, err := a.usage.ListDailyUsage(ctx)
	if err != nil {
		return nil, &application.PersistenceError{Op: "list daily usage", Err: err}
	}
	return daily, nil
}

// LockEvents returns the lock history, oldest first.
func (a *Aggregator) LockEvents(ctx context.Context) ([]persistence.LockEvent, error) {
	events, err := a.events.ListLockEvents(ctx)
	if err != nil {
		return nil, &application.PersistenceError{Op: "list lock events", Err: err}
	}
	return events, nil
}

// Reset clears usage totals, daily rollups and the lock history.
func (a *Aggregator) Reset(ctx context.Context) error {
	logger := a.serviceLogger(ctx, "reset")
	err := errors.Join(a.usage.ResetUsage(ctx), a.events.ResetLockEvents(ctx))
	a.cache.Invalidate()
	if err != nil {
		err = &application.PersistenceError{Op: "reset insights", Err: err}
		logger.ErrorContext(ctx, "reset failed", "error", err)
		return err
	}
	logger.InfoContext(ctx, "insights data reset")
	return nil
}
