package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/focusguard/internal/persistence"
	"github.com/example/focusguard/internal/recurrence"
)

const (
	scheduleStoreService = "schedule_store"
	maxIDAttempts        = 5
)

// NewScheduleID returns a time-ordered schedule identifier.
func NewScheduleID() string {
	return "schedule_" + uuid.Must(uuid.NewV7()).String()
}

// ScheduleStoreConfig carries optional ScheduleStore collaborators.
type ScheduleStoreConfig struct {
	OwnerID     string
	Evaluator   *recurrence.Evaluator
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// ScheduleStore is the durable schedule collection. Every operation
// reads and writes the whole collection under one mutex.
type ScheduleStore struct {
	mu          sync.Mutex
	repo        persistence.ScheduleRepository
	evaluator   *recurrence.Evaluator
	ownerID     string
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	loaded    bool
	schedules []Schedule

	listenersMu sync.RWMutex
	listeners   []func()
}

// NewScheduleStore wires a store over repo.
func NewScheduleStore(repo persistence.ScheduleRepository, cfg ScheduleStoreConfig) *ScheduleStore {
	if cfg.OwnerID == "" {
		cfg.OwnerID = DefaultOwnerID
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = recurrence.NewEvaluator(nil)
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = NewScheduleID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ScheduleStore{
		repo:        repo,
		evaluator:   cfg.Evaluator,
		ownerID:     cfg.OwnerID,
		idGenerator: cfg.IDGenerator,
		now:         cfg.Now,
		logger:      defaultLogger(cfg.Logger),
	}
}

// OnChange registers fn to run after every successful mutation.
func (s *ScheduleStore) OnChange(fn func()) {
	if fn == nil {
		return
	}
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

func (s *ScheduleStore) notify() {
	s.listenersMu.RLock()
	listeners := append([]func(){}, s.listeners...)
	s.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Add validates input and stores a new enabled schedule.
func (s *ScheduleStore) Add(ctx context.Context, input ScheduleInput) (Schedule, error) {
	logger := serviceLogger(ctx, s.logger, scheduleStoreService, "add")

	packages, vErr := normalizePackages(input.AppPackageNames)
	now := s.now()
	cfg := s.pinOneTime(input.ScheduleConfig, now)
	vErr.merge("scheduleConfig.", validateConfig(cfg))
	if vErr.HasErrors() {
		logger.WarnContext(ctx, "schedule rejected", "error_kind", ErrorKind(vErr), "fields", vErr.FieldErrors)
		return Schedule{}, vErr
	}

	s.mu.Lock()
	created, err := s.addLocked(ctx, packages, cfg, now)
	s.mu.Unlock()
	if err != nil {
		logger.ErrorContext(ctx, "schedule add failed", "error", err, "error_kind", ErrorKind(err))
		return Schedule{}, err
	}

	logger.InfoContext(ctx, "schedule added",
		"schedule_id", created.ID,
		"apps", len(created.AppPackageNames),
		"recurring", created.ScheduleConfig.Recurring(),
	)
	s.notify()
	return created.clone(), nil
}

func (s *ScheduleStore) addLocked(ctx context.Context, packages []string, cfg recurrence.Config, now time.Time) (Schedule, error) {
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return Schedule{}, err
	}

	id, err := s.uniqueIDLocked()
	if err != nil {
		return Schedule{}, err
	}

	created := Schedule{
		ID:              id,
		OwnerID:         s.ownerID,
		AppPackageNames: packages,
		ScheduleConfig:  cfg,
		IsEnabled:       true,
		CreatedAt:       now,
	}
	next := append(cloneSchedules(s.schedules), created)
	if err := s.saveLocked(ctx, next); err != nil {
		return Schedule{}, err
	}
	return created, nil
}

// pinOneTime dates a one-time config without startDate to today, so it runs
// once and is swept afterwards instead of matching every day.
func (s *ScheduleStore) pinOneTime(cfg recurrence.Config, now time.Time) recurrence.Config {
	if !cfg.Recurring() && cfg.StartDate == "" {
		cfg.StartDate = s.evaluator.Today(now)
	}
	return cfg
}

func (s *ScheduleStore) uniqueIDLocked() (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := s.idGenerator()
		if id == "" {
			continue
		}
		if s.indexLocked(id) < 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("application: could not generate a unique schedule id after %d attempts", maxIDAttempts)
}

// List returns every schedule in insertion order.
func (s *ScheduleStore) List(ctx context.Context) ([]Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	return cloneSchedules(s.schedules), nil
}

// Enabled returns the enabled schedules in insertion order.
func (s *ScheduleStore) Enabled(ctx context.Context) ([]Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	var enabled []Schedule
	for _, schedule := range s.schedules {
		if schedule.IsEnabled {
			enabled = append(enabled, schedule.clone())
		}
	}
	return enabled, nil
}

// Get returns the schedule with id.
func (s *ScheduleStore) Get(ctx context.Context, id string) (Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(ctx); err != nil {
		return Schedule{}, err
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		return Schedule{}, ErrNotFound
	}
	return s.schedules[idx].clone(), nil
}

// Update merges patch into the schedule with id and re-validates the result.
// The id, owner and creation time never change.
func (s *ScheduleStore) Update(ctx context.Context, id string, patch SchedulePatch) (Schedule, error) {
	logger := serviceLogger(ctx, s.logger, scheduleStoreService, "update", "schedule_id", id)

	s.mu.Lock()
	updated, err := s.updateLocked(ctx, id, func(current Schedule) (Schedule, *ValidationError) {
		vErr := &ValidationError{}
		if patch.AppPackageNames != nil {
			packages, pkgErr := normalizePackages(patch.AppPackageNames)
			vErr.merge("", pkgErr)
			current.AppPackageNames = packages
		}
		if patch.ScheduleConfig != nil {
			current.ScheduleConfig = s.pinOneTime(*patch.ScheduleConfig, s.now())
			vErr.merge("scheduleConfig.", validateConfig(current.ScheduleConfig))
		}
		if patch.IsEnabled != nil {
			current.IsEnabled = *patch.IsEnabled
		}
		return current, vErr
	})
	s.mu.Unlock()
	if err != nil {
		logger.WarnContext(ctx, "schedule update failed", "error", err, "error_kind", ErrorKind(err))
		return Schedule{}, err
	}

	logger.InfoContext(ctx, "schedule updated", "enabled", updated.IsEnabled)
	s.notify()
	return updated, nil
}

// SetEnabled switches a schedule on or off.
func (s *ScheduleStore) SetEnabled(ctx context.Context, id string, enabled bool) (Schedule, error) {
	return s.Update(ctx, id, SchedulePatch{IsEnabled: &enabled})
}

func (s *ScheduleStore) updateLocked(ctx context.Context, id string, apply func(Schedule) (Schedule, *ValidationError)) (Schedule, error) {
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return Schedule{}, err
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		return Schedule{}, ErrNotFound
	}

	current := s.schedules[idx]
	updated, vErr := apply(current.clone())
	if vErr.HasErrors() {
		return Schedule{}, vErr
	}
	updated.ID = current.ID
	updated.OwnerID = current.OwnerID
	updated.CreatedAt = current.CreatedAt

	next := cloneSchedules(s.schedules)
	next[idx] = updated
	if err := s.saveLocked(ctx, next); err != nil {
		return Schedule{}, err
	}
	return updated.clone(), nil
}

// Delete removes the schedule with id.
func (s *ScheduleStore) Delete(ctx context.Context, id string) error {
	logger := serviceLogger(ctx, s.logger, scheduleStoreService, "delete", "schedule_id", id)

	s.mu.Lock()
	err := s.removeLocked(ctx, func(schedule Schedule) bool { return schedule.ID == id }, true)
	s.mu.Unlock()
	if err != nil {
		logger.WarnContext(ctx, "schedule delete failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "schedule deleted")
	s.notify()
	return nil
}

// DeleteExpired removes every one-time schedule that can no longer become
// active at now and returns the removed schedules.
func (s *ScheduleStore) DeleteExpired(ctx context.Context, now time.Time) ([]Schedule, error) {
	s.mu.Lock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	var expired []Schedule
	for _, schedule := range s.schedules {
		if s.evaluator.IsExpired(schedule.ScheduleConfig, now) {
			expired = append(expired, schedule.clone())
		}
	}
	var err error
	if len(expired) > 0 {
		err = s.removeLocked(ctx, func(schedule Schedule) bool {
			return s.evaluator.IsExpired(schedule.ScheduleConfig, now)
		}, false)
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		logger := serviceLogger(ctx, s.logger, scheduleStoreService, "delete_expired")
		for _, schedule := range expired {
			logger.InfoContext(ctx, "expired schedule removed", "schedule_id", schedule.ID)
		}
		s.notify()
	}
	return expired, nil
}

func (s *ScheduleStore) removeLocked(ctx context.Context, match func(Schedule) bool, requireMatch bool) error {
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	next := make([]Schedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		if !match(schedule) {
			next = append(next, schedule.clone())
		}
	}
	if len(next) == len(s.schedules) {
		if requireMatch {
			return ErrNotFound
		}
		return nil
	}
	return s.saveLocked(ctx, next)
}

// Import merges schedules from a stored document of any supported version.
// Schedules whose id already exists are skipped. Every imported schedule is
// validated before anything is written.
func (s *ScheduleStore) Import(ctx context.Context, document []byte) (int, error) {
	logger := serviceLogger(ctx, s.logger, scheduleStoreService, "import")

	records, version, err := persistence.DecodeSchedules(document, s.evaluator.Location())
	if err != nil {
		vErr := NewValidationError("document", err.Error())
		logger.WarnContext(ctx, "schedule import rejected", "error", err, "error_kind", ErrorKind(vErr))
		return 0, vErr
	}

	vErr := &ValidationError{}
	now := s.now()
	incoming := make([]Schedule, 0, len(records))
	for i, record := range records {
		schedule := scheduleFromPersistence(record)
		schedule.ScheduleConfig = s.pinOneTime(schedule.ScheduleConfig, now)
		packages, pkgErr := normalizePackages(schedule.AppPackageNames)
		prefix := fmt.Sprintf("schedules[%d].", i)
		vErr.merge(prefix, pkgErr)
		vErr.merge(prefix+"scheduleConfig.", validateConfig(schedule.ScheduleConfig))
		if strings.TrimSpace(schedule.ID) == "" {
			vErr.add(prefix+"id", "id is required")
		}
		schedule.AppPackageNames = packages
		if schedule.OwnerID == "" {
			schedule.OwnerID = s.ownerID
		}
		incoming = append(incoming, schedule)
	}
	if vErr.HasErrors() {
		logger.WarnContext(ctx, "schedule import rejected", "error_kind", ErrorKind(vErr), "fields", vErr.FieldErrors)
		return 0, vErr
	}

	s.mu.Lock()
	imported, err := s.importLocked(ctx, incoming)
	s.mu.Unlock()
	if err != nil {
		logger.ErrorContext(ctx, "schedule import failed", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}

	logger.InfoContext(ctx, "schedules imported", "document_version", version, "imported", imported, "skipped", len(incoming)-imported)
	if imported > 0 {
		s.notify()
	}
	return imported, nil
}

func (s *ScheduleStore) importLocked(ctx context.Context, incoming []Schedule) (int, error) {
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return 0, err
	}
	next := cloneSchedules(s.schedules)
	seen := make(map[string]struct{}, len(next))
	for _, schedule := range next {
		seen[schedule.ID] = struct{}{}
	}
	imported := 0
	for _, schedule := range incoming {
		if _, ok := seen[schedule.ID]; ok {
			continue
		}
		seen[schedule.ID] = struct{}{}
		next = append(next, schedule)
		imported++
	}
	if imported == 0 {
		return 0, nil
	}
	return imported, s.saveLocked(ctx, next)
}

func (s *ScheduleStore) ensureLoadedLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	records, err := s.repo.LoadSchedules(ctx)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			records = nil
		} else {
			return &PersistenceError{Op: "load schedules", Err: err}
		}
	}
	schedules := make([]Schedule, 0, len(records))
	for _, record := range records {
		schedules = append(schedules, scheduleFromPersistence(record))
	}
	s.schedules = schedules
	s.loaded = true
	return nil
}

func (s *ScheduleStore) saveLocked(ctx context.Context, next []Schedule) error {
	records := make([]persistence.ScheduledLock, 0, len(next))
	for _, schedule := range next {
		records = append(records, schedule.record())
	}
	if err := s.repo.SaveSchedules(ctx, records); err != nil {
		return mapRepoError("save schedules", err)
	}
	s.schedules = next
	return nil
}

func (s *ScheduleStore) indexLocked(id string) int {
	for i, schedule := range s.schedules {
		if schedule.ID == id {
			return i
		}
	}
	return -1
}

// normalizePackages trims, drops duplicates and keeps the first-seen order.
func normalizePackages(names []string) ([]string, *ValidationError) {
	vErr := &ValidationError{}
	if len(names) == 0 {
		vErr.add("appPackageNames", "at least one app is required")
		return nil, vErr
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			vErr.add("appPackageNames", "package names must not be blank")
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out, vErr
}

func validateConfig(cfg recurrence.Config) *ValidationError {
	vErr := &ValidationError{}
	for _, problem := range recurrence.Validate(cfg) {
		vErr.add(problem.Field, problemMessage(problem.Err))
	}
	return vErr
}

func problemMessage(err error) string {
	switch {
	case errors.Is(err, recurrence.ErrInvalidTime):
		return "must be a time of day in HH:MM format"
	case errors.Is(err, recurrence.ErrInvalidDate):
		return "must be a date in YYYY-MM-DD format"
	case errors.Is(err, recurrence.ErrEmptyWindow):
		return "must differ from startTime"
	case errors.Is(err, recurrence.ErrDateOrder):
		return "must not be before startDate"
	default:
		return err.Error()
	}
}
