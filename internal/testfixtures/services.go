package testfixtures

import (
	"context"
	"sync"
	"time"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/persistence"
	"github.com/example/focusguard/internal/persistence/memory"
	"github.com/example/focusguard/internal/recurrence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("schedule"),
		Location:    time.UTC,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("schedule")
	}
	if factory.Location == nil {
		factory.Location = time.UTC
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation overrides the zone schedules are evaluated in.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// Evaluator returns an evaluator in the factory's zone.
func (f *ServiceFactory) Evaluator() *recurrence.Evaluator {
	return recurrence.NewEvaluator(f.Location)
}

// NewScheduleStore builds a ScheduleStore over repo.
func (f *ServiceFactory) NewScheduleStore(repo persistence.ScheduleRepository) *application.ScheduleStore {
	return application.NewScheduleStore(repo, application.ScheduleStoreConfig{
		Evaluator:   f.Evaluator(),
		IDGenerator: f.IDGenerator.NextFunc(),
		Now:         f.Clock.NowFunc(),
		Logger:      DiscardLogger(),
	})
}

// NewLockManager builds a LockManager over store and repo. Blocked launches
// are kept when repo also stores them.
func (f *ServiceFactory) NewLockManager(store *application.ScheduleStore, repo persistence.ManualLockRepository, recorder application.ActivityRecorder) *application.LockManager {
	blocked, _ := repo.(persistence.BlockedEventRepository)
	return application.NewLockManager(store, repo, application.LockManagerConfig{
		Evaluator: f.Evaluator(),
		Recorder:  recorder,
		Blocked:   blocked,
		Now:       f.Clock.NowFunc(),
		Logger:    DiscardLogger(),
	})
}

// NewQuoteService builds a QuoteService over repo that always picks the
// first candidate quote.
func (f *ServiceFactory) NewQuoteService(repo persistence.QuoteRepository) *application.QuoteService {
	return application.NewQuoteService(repo, application.QuoteServiceConfig{
		IDGenerator: NewIDGenerator("custom").NextFunc(),
		Now:         f.Clock.NowFunc(),
		Intn:        func(int) int { return 0 },
		Logger:      DiscardLogger(),
	})
}

// Services bundles in-memory wired services for tests.
type Services struct {
	Factory   *ServiceFactory
	Storage   *memory.Storage
	Schedules *application.ScheduleStore
	Locks     *application.LockManager
	Quotes    *application.QuoteService
	Activity  *RecordingActivity
}

// NewServices wires the application services over in-memory storage.
func NewServices(opts ...ServiceFactoryOption) *Services {
	factory := NewServiceFactory(opts...)
	storage := memory.New(factory.Location)
	activity := &RecordingActivity{}
	schedules := factory.NewScheduleStore(storage)
	return &Services{
		Factory:   factory,
		Storage:   storage,
		Schedules: schedules,
		Locks:     factory.NewLockManager(schedules, storage, activity),
		Quotes:    factory.NewQuoteService(storage),
		Activity:  activity,
	}
}

// UsageRecord is one RecordAppUsage call captured by RecordingActivity.
type UsageRecord struct {
	PackageName string
	AppName     string
	DurationMs  int64
}

// LockEventRecord is one RecordLockEvent call captured by RecordingActivity.
type LockEventRecord struct {
	AppName       string
	PackageName   string
	Start         time.Time
	End           time.Time
	WasSuccessful bool
}

// RecordingActivity captures activity records in memory.
type RecordingActivity struct {
	mu     sync.Mutex
	usage  []UsageRecord
	events []LockEventRecord
}

// RecordAppUsage implements application.ActivityRecorder.
func (r *RecordingActivity) RecordAppUsage(ctx context.Context, packageName, appName string, durationMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage = append(r.usage, UsageRecord{PackageName: packageName, AppName: appName, DurationMs: durationMs})
	return nil
}

// RecordLockEvent implements application.ActivityRecorder.
func (r *RecordingActivity) RecordLockEvent(ctx context.Context, appName, packageName string, start, end time.Time, wasSuccessful bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, LockEventRecord{
		AppName:       appName,
		PackageName:   packageName,
		Start:         start,
		End:           end,
		WasSuccessful: wasSuccessful,
	})
	return nil
}

// Usage returns the captured usage records.
func (r *RecordingActivity) Usage() []UsageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]UsageRecord(nil), r.usage...)
}

// LockEvents returns the captured lock events.
func (r *RecordingActivity) LockEvents() []LockEventRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LockEventRecord(nil), r.events...)
}
