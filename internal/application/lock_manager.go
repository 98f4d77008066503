package application

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/focusguard/internal/persistence"
	"github.com/example/focusguard/internal/recurrence"
)

const (
	lockManagerService = "lock_manager"

	// DefaultMaxLockMinutes caps finite manual locks at one day.
	DefaultMaxLockMinutes = 1440
)

// LockDuration is how long a manual lock lasts. Durations built from a
// minute count keep that count so values beyond time.Duration's range are
// rejected instead of wrapping.
type LockDuration struct {
	d       time.Duration
	minutes int64
	counted bool
	finite  bool
}

// Indefinitely locks until an explicit unlock.
func Indefinitely() LockDuration {
	return LockDuration{}
}

// For locks for d. LockNow rejects values that are not whole positive minutes.
func For(d time.Duration) LockDuration {
	return LockDuration{d: d, finite: true}
}

// Minutes is For(n minutes).
func Minutes(n int) LockDuration {
	l := LockDuration{minutes: int64(n), counted: true, finite: true}
	if l.minutes <= math.MaxInt64/int64(time.Minute) && l.minutes >= math.MinInt64/int64(time.Minute) {
		l.d = time.Duration(n) * time.Minute
	}
	return l
}

// Indefinite reports whether the duration has no end.
func (l LockDuration) Indefinite() bool {
	return !l.finite
}

// Duration returns the finite length, zero when indefinite.
func (l LockDuration) Duration() time.Duration {
	return l.d
}

func (l LockDuration) String() string {
	if !l.finite {
		return "indefinite"
	}
	if l.counted {
		return fmt.Sprintf("%dm", l.minutes)
	}
	return l.d.String()
}

// ActivityRecorder receives usage and lock outcome records.
type ActivityRecorder interface {
	RecordAppUsage(ctx context.Context, packageName, appName string, durationMs int64) error
	RecordLockEvent(ctx context.Context, appName, packageName string, start, end time.Time, wasSuccessful bool) error
}

// LockObserver is notified about enforcement events.
type LockObserver interface {
	AppBlocked(packageName string)
}

// LockManagerConfig carries optional LockManager collaborators.
type LockManagerConfig struct {
	Evaluator      *recurrence.Evaluator
	Recorder       ActivityRecorder
	Observer       LockObserver
	Blocked        persistence.BlockedEventRepository
	MaxLockMinutes int
	Now            func() time.Time
	Logger         *slog.Logger
}

type foregroundSession struct {
	packageName string
	appName     string
	since       time.Time
}

// LockManager owns manual locks and merges them with schedule activity into
// the locked set. Lock order is LockManager then ScheduleStore.
type LockManager struct {
	mu        sync.Mutex
	schedules *ScheduleStore
	repo      persistence.ManualLockRepository
	evaluator *recurrence.Evaluator
	recorder  ActivityRecorder
	observer  LockObserver
	blocked   persistence.BlockedEventRepository
	maxLock   time.Duration
	now       func() time.Time
	logger    *slog.Logger

	loaded     bool
	manual     map[string]persistence.ManualLock
	appNames   map[string]string
	foreground *foregroundSession

	listenersMu sync.RWMutex
	listeners   []func()
}

// NewLockManager wires a manager over the schedule store and the manual lock repository.
func NewLockManager(schedules *ScheduleStore, repo persistence.ManualLockRepository, cfg LockManagerConfig) *LockManager {
	if cfg.Evaluator == nil {
		cfg.Evaluator = recurrence.NewEvaluator(nil)
	}
	if cfg.MaxLockMinutes <= 0 {
		cfg.MaxLockMinutes = DefaultMaxLockMinutes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &LockManager{
		schedules: schedules,
		repo:      repo,
		evaluator: cfg.Evaluator,
		recorder:  cfg.Recorder,
		observer:  cfg.Observer,
		blocked:   cfg.Blocked,
		maxLock:   time.Duration(cfg.MaxLockMinutes) * time.Minute,
		now:       cfg.Now,
		logger:    defaultLogger(cfg.Logger),
		manual:    make(map[string]persistence.ManualLock),
		appNames:  make(map[string]string),
	}
}

// OnChange registers fn to run after every successful mutation.
func (m *LockManager) OnChange(fn func()) {
	if fn == nil {
		return
	}
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
}

func (m *LockManager) notify() {
	m.listenersMu.RLock()
	listeners := append([]func(){}, m.listeners...)
	m.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Load reads persisted manual locks. Other operations load lazily.
func (m *LockManager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLoadedLocked(ctx)
}

// LockNow installs or replaces a manual lock on packageName.
func (m *LockManager) LockNow(ctx context.Context, packageName string, duration LockDuration) (LockEntry, error) {
	packageName = strings.TrimSpace(packageName)
	logger := serviceLogger(ctx, m.logger, lockManagerService, "lock_now", "package", packageName)

	vErr := &ValidationError{}
	if packageName == "" {
		vErr.add("packageName", "package name is required")
	}
	if !duration.Indefinite() {
		d := duration.Duration()
		limit := fmt.Sprintf("must not exceed %d minutes", int(m.maxLock/time.Minute))
		switch {
		case duration.counted && duration.minutes <= 0:
			vErr.add("duration", "must be positive")
		case duration.counted && duration.minutes > int64(m.maxLock/time.Minute):
			vErr.add("duration", limit)
		case d <= 0:
			vErr.add("duration", "must be positive")
		case d%time.Minute != 0:
			vErr.add("duration", "must be a whole number of minutes")
		case d > m.maxLock:
			vErr.add("duration", limit)
		}
	}
	if vErr.HasErrors() {
		logger.WarnContext(ctx, "lock rejected", "error_kind", ErrorKind(vErr), "fields", vErr.FieldErrors)
		return LockEntry{}, vErr
	}

	now := m.now()
	lock := persistence.ManualLock{PackageName: packageName, LockedAt: now}
	if !duration.Indefinite() {
		unlockAt := now.Add(duration.Duration())
		lock.UnlockAt = &unlockAt
	}

	m.mu.Lock()
	err := m.mutateLocked(ctx, func(next map[string]persistence.ManualLock) {
		next[packageName] = lock
	})
	m.mu.Unlock()
	if err != nil {
		logger.ErrorContext(ctx, "lock failed", "error", err, "error_kind", ErrorKind(err))
		return LockEntry{}, err
	}

	logger.InfoContext(ctx, "app locked", "duration", duration.String())
	m.notify()
	return manualEntry(lock), nil
}

// Unlock removes the manual lock on packageName. A package held only by an
// active schedule is rejected with a ValidationError; one with no lock at all
// reports ErrNotFound.
func (m *LockManager) Unlock(ctx context.Context, packageName string) error {
	return m.release(ctx, packageName, "unlock", true)
}

// EmergencyUnlock removes the manual lock and records the lock as bypassed.
// For a package held only by an active schedule the bypass is recorded and
// the schedule stays in force.
func (m *LockManager) EmergencyUnlock(ctx context.Context, packageName string) error {
	return m.release(ctx, packageName, "emergency_unlock", false)
}

func (m *LockManager) release(ctx context.Context, packageName, operation string, honored bool) error {
	packageName = strings.TrimSpace(packageName)
	logger := serviceLogger(ctx, m.logger, lockManagerService, operation, "package", packageName)
	now := m.now()

	m.mu.Lock()
	var (
		removed  persistence.ManualLock
		hasEntry bool
		held     bool
	)
	err := m.ensureLoadedLocked(ctx)
	if err == nil {
		removed, hasEntry = m.manual[packageName]
		switch {
		case hasEntry:
			err = m.mutateLocked(ctx, func(next map[string]persistence.ManualLock) {
				delete(next, packageName)
			})
		case !honored:
			// A bypass of a schedule-held app leaves the schedule in place.
			held, err = m.heldByScheduleLocked(ctx, packageName, now)
			if err == nil && !held {
				err = ErrNotFound
			}
		default:
			held, err = m.heldByScheduleLocked(ctx, packageName, now)
			switch {
			case err != nil:
			case held:
				err = NewValidationError("packageName", "locked by an active schedule; change the schedule instead")
			default:
				err = ErrNotFound
			}
		}
	}
	appName := m.appNameLocked(packageName)
	m.mu.Unlock()

	if err != nil {
		logger.WarnContext(ctx, "unlock failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if !hasEntry {
		logger.InfoContext(ctx, "schedule lock bypassed")
		m.recordLockEvent(ctx, logger, appName, packageName, now, now, false)
		return nil
	}

	logger.InfoContext(ctx, "app unlocked", "bypass", !honored)
	m.recordLockEvent(ctx, logger, appName, packageName, removed.LockedAt, now, honored)
	m.notify()
	return nil
}

func (m *LockManager) heldByScheduleLocked(ctx context.Context, packageName string, now time.Time) (bool, error) {
	enabled, err := m.schedules.Enabled(ctx)
	if err != nil {
		return false, err
	}
	for _, schedule := range enabled {
		if !m.evaluator.IsActive(schedule.IsEnabled, schedule.ScheduleConfig, now) {
			continue
		}
		for _, pkg := range schedule.AppPackageNames {
			if pkg == packageName {
				return true, nil
			}
		}
	}
	return false, nil
}

// ComputeLockedSet returns the sorted package names locked at now.
func (m *LockManager) ComputeLockedSet(ctx context.Context, now time.Time) ([]string, error) {
	snapshot, err := m.Snapshot(ctx, now)
	if err != nil {
		return nil, err
	}
	return snapshot.Packages(), nil
}

// Locked returns the locked set at now with per-package details.
func (m *LockManager) Locked(ctx context.Context, now time.Time) ([]LockEntry, error) {
	snapshot, err := m.Snapshot(ctx, now)
	if err != nil {
		return nil, err
	}
	return snapshot.Locked, nil
}

// ManualLocks returns every manual entry, expired or not, sorted by package.
func (m *LockManager) ManualLocks(ctx context.Context) ([]LockEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	entries := make([]LockEntry, 0, len(m.manual))
	for _, lock := range m.manual {
		entries = append(entries, manualEntry(lock))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].PackageName < entries[j].PackageName
	})
	return entries, nil
}

// Snapshot returns the locked set and the enabled schedules as one
// consistent view. Manual entries whose unlock time has passed are skipped.
func (m *LockManager) Snapshot(ctx context.Context, now time.Time) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoadedLocked(ctx); err != nil {
		return Snapshot{}, err
	}
	enabled, err := m.schedules.Enabled(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	entries := make(map[string]*LockEntry)
	for _, lock := range m.manual {
		if lock.UnlockAt != nil && !lock.UnlockAt.After(now) {
			continue
		}
		entry := manualEntry(lock)
		entries[lock.PackageName] = &entry
	}
	for _, schedule := range enabled {
		if !m.evaluator.IsActive(schedule.IsEnabled, schedule.ScheduleConfig, now) {
			continue
		}
		for _, pkg := range schedule.AppPackageNames {
			entry, ok := entries[pkg]
			if !ok {
				entry = &LockEntry{PackageName: pkg}
				entries[pkg] = entry
			}
			entry.Source = SourceSchedule
			entry.UnlockAt = nil
			entry.ScheduleIDs = append(entry.ScheduleIDs, schedule.ID)
		}
	}

	locked := make([]LockEntry, 0, len(entries))
	for _, entry := range entries {
		locked = append(locked, *entry)
	}
	sort.Slice(locked, func(i, j int) bool {
		return locked[i].PackageName < locked[j].PackageName
	})

	return Snapshot{TakenAt: now, Locked: locked, Schedules: enabled}, nil
}

// SweepExpired drops manual locks whose unlock time is at or before now,
// recording each as a completed lock, and deletes expired schedules.
func (m *LockManager) SweepExpired(ctx context.Context, now time.Time) (SweepResult, error) {
	logger := serviceLogger(ctx, m.logger, lockManagerService, "sweep_expired")

	m.mu.Lock()
	var expired []persistence.ManualLock
	appNames := make(map[string]string)
	err := m.ensureLoadedLocked(ctx)
	if err == nil {
		for _, lock := range m.manual {
			if lock.UnlockAt != nil && !lock.UnlockAt.After(now) {
				expired = append(expired, lock)
				appNames[lock.PackageName] = m.appNameLocked(lock.PackageName)
			}
		}
		if len(expired) > 0 {
			err = m.mutateLocked(ctx, func(next map[string]persistence.ManualLock) {
				for _, lock := range expired {
					delete(next, lock.PackageName)
				}
			})
		}
	}
	var deleted []Schedule
	if err == nil {
		deleted, err = m.schedules.DeleteExpired(ctx, now)
	}
	m.mu.Unlock()

	if err != nil {
		logger.ErrorContext(ctx, "sweep failed", "error", err, "error_kind", ErrorKind(err))
		return SweepResult{}, err
	}

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].PackageName < expired[j].PackageName
	})
	result := SweepResult{}
	for _, lock := range expired {
		result.ExpiredLocks = append(result.ExpiredLocks, lock.PackageName)
		m.recordLockEvent(ctx, logger, appNames[lock.PackageName], lock.PackageName, lock.LockedAt, *lock.UnlockAt, true)
	}
	for _, schedule := range deleted {
		result.DeletedSchedules = append(result.DeletedSchedules, schedule.ID)
	}

	if len(expired) > 0 {
		logger.InfoContext(ctx, "expired manual locks removed", "packages", result.ExpiredLocks)
		m.notify()
	}
	return result, nil
}

// OnAppBlocked records that the enforcement surface blocked packageName.
func (m *LockManager) OnAppBlocked(ctx context.Context, packageName string) {
	packageName = strings.TrimSpace(packageName)
	logger := serviceLogger(ctx, m.logger, lockManagerService, "app_blocked", "package", packageName)
	logger.InfoContext(ctx, "blocked app launch")
	if m.observer != nil {
		m.observer.AppBlocked(packageName)
	}
	if m.blocked == nil || packageName == "" {
		return
	}

	m.mu.Lock()
	appName := m.appNames[packageName]
	m.mu.Unlock()
	event := persistence.BlockedEvent{PackageName: packageName, AppName: appName, BlockedAt: m.now()}
	if err := m.blocked.AppendBlockedEvent(ctx, event, persistence.BlockedEventRetention); err != nil {
		err = &PersistenceError{Op: "record blocked launch", Err: err}
		logger.WarnContext(ctx, "blocked launch record failed", "error", err, "error_kind", ErrorKind(err))
	}
}

// BlockedEvents returns the recorded blocked launches, oldest first.
func (m *LockManager) BlockedEvents(ctx context.Context) ([]persistence.BlockedEvent, error) {
	if m.blocked == nil {
		return []persistence.BlockedEvent{}, nil
	}
	events, err := m.blocked.ListBlockedEvents(ctx)
	if err != nil {
		err = &PersistenceError{Op: "list blocked launches", Err: err}
		serviceLogger(ctx, m.logger, lockManagerService, "blocked_events").
			ErrorContext(ctx, "blocked launch list failed", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	if events == nil {
		events = []persistence.BlockedEvent{}
	}
	return events, nil
}

// OnForegroundAppChanged closes the previous foreground session, recording
// its length as usage, and opens a session for packageName. An empty
// packageName means nothing is in the foreground.
func (m *LockManager) OnForegroundAppChanged(ctx context.Context, packageName, appName string, at time.Time) {
	logger := serviceLogger(ctx, m.logger, lockManagerService, "foreground_changed", "package", packageName)

	m.mu.Lock()
	previous := m.foreground
	if appName != "" && packageName != "" {
		m.appNames[packageName] = appName
	}
	if previous != nil && previous.packageName == packageName {
		if appName != "" {
			previous.appName = appName
		}
		m.mu.Unlock()
		return
	}
	if packageName != "" {
		m.foreground = &foregroundSession{packageName: packageName, appName: appName, since: at}
	} else {
		m.foreground = nil
	}
	m.mu.Unlock()

	if previous == nil || m.recorder == nil || !at.After(previous.since) {
		return
	}
	elapsed := at.Sub(previous.since).Milliseconds()
	if err := m.recorder.RecordAppUsage(ctx, previous.packageName, previous.appName, elapsed); err != nil {
		logger.WarnContext(ctx, "usage record failed", "error", err, "error_kind", ErrorKind(err))
	}
}

// MinutesRemaining rounds the time left on a finite entry up to whole minutes.
func MinutesRemaining(entry LockEntry, now time.Time) *int {
	if entry.UnlockAt == nil {
		return nil
	}
	minutes := int(math.Ceil(entry.UnlockAt.Sub(now).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return &minutes
}

func (m *LockManager) recordLockEvent(ctx context.Context, logger *slog.Logger, appName, packageName string, start, end time.Time, honored bool) {
	if m.recorder == nil {
		return
	}
	if end.Before(start) {
		end = start
	}
	if err := m.recorder.RecordLockEvent(ctx, appName, packageName, start, end, honored); err != nil {
		logger.WarnContext(ctx, "lock event record failed", "error", err, "error_kind", ErrorKind(err))
	}
}

func (m *LockManager) mutateLocked(ctx context.Context, change func(map[string]persistence.ManualLock)) error {
	if err := m.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	next := make(map[string]persistence.ManualLock, len(m.manual)+1)
	for pkg, lock := range m.manual {
		next[pkg] = lock
	}
	change(next)

	locks := make([]persistence.ManualLock, 0, len(next))
	for _, lock := range next {
		locks = append(locks, lock)
	}
	sort.Slice(locks, func(i, j int) bool {
		return locks[i].PackageName < locks[j].PackageName
	})
	if err := m.repo.ReplaceManualLocks(ctx, locks); err != nil {
		return mapRepoError("save manual locks", err)
	}
	m.manual = next
	return nil
}

func (m *LockManager) ensureLoadedLocked(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	locks, err := m.repo.ListManualLocks(ctx)
	if err != nil {
		return &PersistenceError{Op: "load manual locks", Err: err}
	}
	manual := make(map[string]persistence.ManualLock, len(locks))
	for _, lock := range locks {
		manual[lock.PackageName] = lock
	}
	m.manual = manual
	m.loaded = true
	return nil
}

func (m *LockManager) appNameLocked(packageName string) string {
	if name, ok := m.appNames[packageName]; ok {
		return name
	}
	return packageName
}

func manualEntry(lock persistence.ManualLock) LockEntry {
	entry := LockEntry{PackageName: lock.PackageName, Source: SourceManual}
	if lock.UnlockAt != nil {
		unlockAt := *lock.UnlockAt
		entry.UnlockAt = &unlockAt
	}
	return entry
}
