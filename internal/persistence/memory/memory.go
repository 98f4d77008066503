// Package memory provides a process-local implementation of the persistence
// repositories. It backs tests and the ":memory:" database path.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// Storage keeps every collection in memory. The schedule collection is held
// in its encoded document form so that reads never alias caller slices.
type Storage struct {
	mu          sync.RWMutex
	location    *time.Location
	scheduleDoc []byte
	manualLocks map[string]persistence.ManualLock
	appUsage    map[string]persistence.AppUsage
	dailyUsage  map[string]persistence.DailyUsage
	lockEvents  []persistence.LockEvent
	blocked     []persistence.BlockedEvent
	quotes      []persistence.CustomQuote
	settings    *persistence.QuoteSettings
}

// New returns an empty Storage that decodes legacy documents in loc.
func New(loc *time.Location) *Storage {
	if loc == nil {
		loc = time.Local
	}
	return &Storage{
		location:    loc,
		manualLocks: make(map[string]persistence.ManualLock),
		appUsage:    make(map[string]persistence.AppUsage),
		dailyUsage:  make(map[string]persistence.DailyUsage),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// SetScheduleDocument replaces the raw stored document, in any supported version.
func (s *Storage) SetScheduleDocument(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleDoc = slices.Clone(data)
}

// --- ScheduleRepository implementation ---

// LoadSchedules decodes the stored schedule document.
func (s *Storage) LoadSchedules(ctx context.Context) ([]persistence.ScheduledLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedules, _, err := persistence.DecodeSchedules(s.scheduleDoc, s.location)
	return schedules, err
}

// SaveSchedules encodes and stores the whole schedule collection.
func (s *Storage) SaveSchedules(ctx context.Context, schedules []persistence.ScheduledLock) error {
	data, err := persistence.EncodeSchedules(schedules)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleDoc = data
	return nil
}

// --- ManualLockRepository implementation ---

// ListManualLocks returns manual locks ordered by package name.
func (s *Storage) ListManualLocks(ctx context.Context) ([]persistence.ManualLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locks := make([]persistence.ManualLock, 0, len(s.manualLocks))
	for _, lock := range s.manualLocks {
		locks = append(locks, cloneManualLock(lock))
	}
	sort.Slice(locks, func(i, j int) bool {
		return locks[i].PackageName < locks[j].PackageName
	})
	return locks, nil
}

// ReplaceManualLocks swaps the stored set for locks.
func (s *Storage) ReplaceManualLocks(ctx context.Context, locks []persistence.ManualLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replacement := make(map[string]persistence.ManualLock, len(locks))
	for _, lock := range locks {
		replacement[lock.PackageName] = cloneManualLock(lock)
	}
	s.manualLocks = replacement
	return nil
}

// --- UsageRepository implementation ---

// RecordUsage folds sample into the app total and the daily rollup.
func (s *Storage) RecordUsage(ctx context.Context, sample persistence.UsageSample, retain int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app := s.appUsage[sample.PackageName]
	app.PackageName = sample.PackageName
	if sample.AppName != "" {
		app.AppName = sample.AppName
	}
	app.TotalTimeMs += sample.DurationMs
	app.LastUsed = sample.At
	s.appUsage[sample.PackageName] = app

	day := s.dailyUsage[sample.Day]
	day.Date = sample.Day
	day.TotalTimeMs += sample.DurationMs
	s.dailyUsage[sample.Day] = day

	s.trimDailyLocked(retain)
	return nil
}

// AddUnlock increments the unlock counter of day.
func (s *Storage) AddUnlock(ctx context.Context, day string, retain int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.dailyUsage[day]
	record.Date = day
	record.UnlockCount++
	s.dailyUsage[day] = record

	s.trimDailyLocked(retain)
	return nil
}

// ListAppUsage returns app totals ordered by package name.
func (s *Storage) ListAppUsage(ctx context.Context) ([]persistence.AppUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]persistence.AppUsage, 0, len(s.appUsage))
	for _, record := range s.appUsage {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].PackageName < records[j].PackageName
	})
	return records, nil
}

// ListDailyUsage returns daily rollups ordered by date ascending.
func (s *Storage) ListDailyUsage(ctx context.Context) ([]persistence.DailyUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedDailyLocked(), nil
}

// ResetUsage removes every usage record.
func (s *Storage) ResetUsage(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appUsage = make(map[string]persistence.AppUsage)
	s.dailyUsage = make(map[string]persistence.DailyUsage)
	return nil
}

// --- LockEventRepository implementation ---

// AppendLockEvent stores event and drops the oldest events beyond retain.
func (s *Storage) AppendLockEvent(ctx context.Context, event persistence.LockEvent, retain int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.lockEvents {
		if existing.ID == event.ID {
			return persistence.ErrConflict
		}
	}

	s.lockEvents = append(s.lockEvents, event)
	if retain > 0 && len(s.lockEvents) > retain {
		s.lockEvents = slices.Clone(s.lockEvents[len(s.lockEvents)-retain:])
	}
	return nil
}

// ListLockEvents returns events in insertion order.
func (s *Storage) ListLockEvents(ctx context.Context) ([]persistence.LockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lockEvents), nil
}

// ResetLockEvents removes every lock event.
func (s *Storage) ResetLockEvents(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockEvents = nil
	return nil
}

// --- BlockedEventRepository implementation ---

// AppendBlockedEvent stores event and drops the oldest events beyond retain.
func (s *Storage) AppendBlockedEvent(ctx context.Context, event persistence.BlockedEvent, retain int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocked = append(s.blocked, event)
	if retain > 0 && len(s.blocked) > retain {
		s.blocked = slices.Clone(s.blocked[len(s.blocked)-retain:])
	}
	return nil
}

// ListBlockedEvents returns events in insertion order.
func (s *Storage) ListBlockedEvents(ctx context.Context) ([]persistence.BlockedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.blocked), nil
}

// --- QuoteRepository implementation ---

// ListCustomQuotes returns quotes in insertion order.
func (s *Storage) ListCustomQuotes(ctx context.Context) ([]persistence.CustomQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.quotes), nil
}

// AddCustomQuote appends quote unless its id is taken.
func (s *Storage) AddCustomQuote(ctx context.Context, quote persistence.CustomQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.ContainsFunc(s.quotes, func(q persistence.CustomQuote) bool { return q.ID == quote.ID }) {
		return persistence.ErrConflict
	}
	s.quotes = append(s.quotes, quote)
	return nil
}

// DeleteCustomQuote removes the quote with id.
func (s *Storage) DeleteCustomQuote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.quotes, func(q persistence.CustomQuote) bool { return q.ID == id })
	if i < 0 {
		return persistence.ErrNotFound
	}
	s.quotes = slices.Delete(slices.Clone(s.quotes), i, i+1)
	return nil
}

// LoadQuoteSettings returns the saved settings, if any.
func (s *Storage) LoadQuoteSettings(ctx context.Context) (persistence.QuoteSettings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return persistence.QuoteSettings{}, false, nil
	}
	return *s.settings, true, nil
}

// SaveQuoteSettings replaces the saved settings.
func (s *Storage) SaveQuoteSettings(ctx context.Context, settings persistence.QuoteSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}

// --- Helpers ---

func (s *Storage) sortedDailyLocked() []persistence.DailyUsage {
	records := make([]persistence.DailyUsage, 0, len(s.dailyUsage))
	for _, record := range s.dailyUsage {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date < records[j].Date
	})
	return records
}

func (s *Storage) trimDailyLocked(retain int) {
	if retain <= 0 || len(s.dailyUsage) <= retain {
		return
	}
	records := s.sortedDailyLocked()
	for _, record := range records[:len(records)-retain] {
		delete(s.dailyUsage, record.Date)
	}
}

func cloneManualLock(lock persistence.ManualLock) persistence.ManualLock {
	clone := lock
	if lock.UnlockAt != nil {
		unlockAt := *lock.UnlockAt
		clone.UnlockAt = &unlockAt
	}
	return clone
}
