package persistence

import (
	"context"
	"time"
)

// ScheduleRepository stores the schedule collection as a whole.
type ScheduleRepository interface {
	LoadSchedules(ctx context.Context) ([]ScheduledLock, error)
	SaveSchedules(ctx context.Context, schedules []ScheduledLock) error
}

// ManualLockRepository stores the manual lock set as a whole.
type ManualLockRepository interface {
	ListManualLocks(ctx context.Context) ([]ManualLock, error)
	ReplaceManualLocks(ctx context.Context, locks []ManualLock) error
}

// UsageSample is one foreground session folded into the usage rollups.
type UsageSample struct {
	PackageName string
	AppName     string
	DurationMs  int64
	Day         string
	At          time.Time
}

// UsageRepository stores per-app totals and per-day rollups.
type UsageRepository interface {
	// RecordUsage adds the sample to the app total and the daily rollup, then
	// keeps only the newest retain days.
	RecordUsage(ctx context.Context, sample UsageSample, retain int) error
	// AddUnlock increments the unlock counter of day.
	AddUnlock(ctx context.Context, day string, retain int) error
	ListAppUsage(ctx context.Context) ([]AppUsage, error)
	// ListDailyUsage returns rollups ordered by date ascending.
	ListDailyUsage(ctx context.Context) ([]DailyUsage, error)
	ResetUsage(ctx context.Context) error
}

// LockEventRepository stores the lock outcome history.
type LockEventRepository interface {
	// AppendLockEvent stores event and keeps only the newest retain events.
	AppendLockEvent(ctx context.Context, event LockEvent, retain int) error
	// ListLockEvents returns events in insertion order.
	ListLockEvents(ctx context.Context) ([]LockEvent, error)
	ResetLockEvents(ctx context.Context) error
}

// BlockedEventRepository stores the blocked launch history.
type BlockedEventRepository interface {
	// AppendBlockedEvent stores event and keeps only the newest retain events.
	AppendBlockedEvent(ctx context.Context, event BlockedEvent, retain int) error
	// ListBlockedEvents returns events in insertion order.
	ListBlockedEvents(ctx context.Context) ([]BlockedEvent, error)
}

// QuoteRepository stores custom quotes and the quote settings.
type QuoteRepository interface {
	// ListCustomQuotes returns quotes in insertion order.
	ListCustomQuotes(ctx context.Context) ([]CustomQuote, error)
	// AddCustomQuote fails with ErrConflict when the id is taken.
	AddCustomQuote(ctx context.Context, quote CustomQuote) error
	// DeleteCustomQuote fails with ErrNotFound when the id is unknown.
	DeleteCustomQuote(ctx context.Context, id string) error
	// LoadQuoteSettings reports false when no settings were saved.
	LoadQuoteSettings(ctx context.Context) (QuoteSettings, bool, error)
	SaveQuoteSettings(ctx context.Context, settings QuoteSettings) error
}
