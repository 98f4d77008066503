package persistence

import (
	"time"

	"github.com/example/focusguard/internal/recurrence"
)

// RetentionLimit bounds the number of daily usage rows and lock events kept.
const RetentionLimit = 365

// ScheduledLock is a stored schedule that locks a set of apps.
type ScheduledLock struct {
	ID              string            `json:"id"`
	OwnerID         string            `json:"ownerId"`
	AppPackageNames []string          `json:"appPackageNames"`
	ScheduleConfig  recurrence.Config `json:"scheduleConfig"`
	IsEnabled       bool              `json:"isEnabled"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// ManualLock is a "lock now" entry. A nil UnlockAt means the lock is indefinite.
type ManualLock struct {
	PackageName string
	UnlockAt    *time.Time
	LockedAt    time.Time
}

// AppUsage accumulates foreground time for a single app.
type AppUsage struct {
	PackageName string
	AppName     string
	TotalTimeMs int64
	LastUsed    time.Time
}

// DailyUsage is the per-day rollup keyed by calendar date (YYYY-MM-DD).
type DailyUsage struct {
	Date        string
	TotalTimeMs int64
	UnlockCount int
}

// LockEvent records how a lock ended.
type LockEvent struct {
	ID            string
	AppName       string
	PackageName   string
	StartTime     time.Time
	EndTime       time.Time
	WasSuccessful bool
}

// BlockedEventRetention bounds the blocked launch history.
const BlockedEventRetention = 1000

// BlockedEvent is one launch of a locked app that the agent stopped.
type BlockedEvent struct {
	PackageName string
	AppName     string
	BlockedAt   time.Time
}

// CustomQuote is a quote written by the user.
type CustomQuote struct {
	ID        string
	Text      string
	Category  string
	Author    string
	CreatedAt time.Time
}

// QuoteSettings selects which quotes the lock screen draws from.
type QuoteSettings struct {
	Category              string
	Source                string
	ShowProductivityStats bool
}
