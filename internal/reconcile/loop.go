// Package reconcile keeps the monitoring bridge in step with the locked set.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/bridge"
	"github.com/example/focusguard/internal/scheduler"
)

const (
	// DefaultInterval is the time between passes while locks or schedules exist.
	DefaultInterval = 60 * time.Second
	// DefaultCallTimeout bounds every bridge call.
	DefaultCallTimeout = 5 * time.Second
	// DefaultConcurrency bounds concurrent bridge calls within one pass.
	DefaultConcurrency = 4
)

// LockState is the part of the lock manager the loop reads.
type LockState interface {
	SweepExpired(ctx context.Context, now time.Time) (application.SweepResult, error)
	Snapshot(ctx context.Context, now time.Time) (application.Snapshot, error)
}

// Observer receives pass and bridge call outcomes.
type Observer interface {
	ObserveReconcile(outcome string, took time.Duration, locked, schedules int)
	ObserveBridgeCall(op string, err error)
}

// BridgeSyncError reports a bridge call that failed and will be retried on
// the next pass.
type BridgeSyncError struct {
	Op      string
	Package string
	Err     error
}

func (e *BridgeSyncError) Error() string {
	if e.Package == "" {
		return fmt.Sprintf("reconcile: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("reconcile: %s %s: %v", e.Op, e.Package, e.Err)
}

func (e *BridgeSyncError) Unwrap() error {
	return e.Err
}

// Config carries optional Loop settings.
type Config struct {
	Interval    time.Duration
	CallTimeout time.Duration
	Concurrency int
	Now         func() time.Time
	Logger      *slog.Logger
	Observer    Observer
}

// Result summarises one pass.
type Result struct {
	Locked   []string
	Pushed   []string
	Released []string
	Sweep    application.SweepResult
	// Skipped is set when the agent lacks permissions or is unreachable.
	Skipped  bool
	Idle     bool
	Failures []error
}

// Loop pushes the locked set to the bridge on a timer and on Trigger.
type Loop struct {
	state       LockState
	bridge      bridge.Bridge
	interval    time.Duration
	callTimeout time.Duration
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
	observer    Observer

	trigger chan struct{}

	runMu           sync.Mutex
	pushed          scheduler.Set
	pushedSchedules []application.Schedule
	schedulesSynced bool
}

// New constructs a Loop.
func New(state LockState, b bridge.Bridge, cfg Config) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		state:       state,
		bridge:      b,
		interval:    cfg.Interval,
		callTimeout: cfg.CallTimeout,
		concurrency: cfg.Concurrency,
		now:         cfg.Now,
		logger:      cfg.Logger.With("service", "reconcile"),
		observer:    cfg.Observer,
		trigger:     make(chan struct{}, 1),
		pushed:      scheduler.NewSet(),
	}
}

// Trigger requests a pass without blocking. Requests made while one is
// pending are coalesced.
func (l *Loop) Trigger() {
	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

// Reset forgets what was pushed, so the next pass pushes everything again,
// and triggers that pass. Call it when a new agent connects.
func (l *Loop) Reset() {
	l.runMu.Lock()
	l.pushed = scheduler.NewSet()
	l.pushedSchedules = nil
	l.schedulesSynced = false
	l.runMu.Unlock()
	l.Trigger()
}

// Run executes passes until ctx is done. The timer stops while the loop is
// idle and restarts on the next Trigger.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.InfoContext(ctx, "reconciliation loop started", "interval", l.interval)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	idle := false
	pass := func() {
		result, err := l.RunOnce(ctx)
		if err != nil {
			if ctx.Err() == nil {
				l.logger.ErrorContext(ctx, "reconciliation pass failed", "error", err, "error_kind", application.ErrorKind(err))
			}
			idle = false
			return
		}
		if result.Idle != idle {
			l.logger.InfoContext(ctx, "reconciliation idle state changed", "idle", result.Idle)
		}
		idle = result.Idle
	}

	pass()
	for {
		var tick <-chan time.Time
		if !idle {
			tick = ticker.C
		}
		select {
		case <-ctx.Done():
			l.logger.InfoContext(ctx, "reconciliation loop stopped")
			return ctx.Err()
		case <-tick:
			pass()
		case <-l.trigger:
			if idle {
				ticker.Reset(l.interval)
			}
			pass()
		}
	}
}

// RunOnce performs a single pass: sweep, snapshot, diff and push. Bridge
// failures are reported in the result and retried on the next pass; only
// lock state errors are returned.
func (l *Loop) RunOnce(ctx context.Context) (Result, error) {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	started := time.Now()
	now := l.now()

	sweep, err := l.state.SweepExpired(ctx, now)
	if err != nil {
		l.observe("error", started, 0, 0)
		return Result{}, err
	}
	snapshot, err := l.state.Snapshot(ctx, now)
	if err != nil {
		l.observe("error", started, 0, 0)
		return Result{}, err
	}

	result := Result{Locked: snapshot.Packages(), Sweep: sweep}
	if len(snapshot.Locked) == 0 && len(snapshot.Schedules) == 0 && len(l.pushed) == 0 {
		// Clear schedules the agent may still hold, then go idle unless the
		// agent is connected and the call failed.
		l.syncSchedules(ctx, nil, &result)
		result.Idle = !retryable(result.Failures)
		l.observe("idle", started, 0, 0)
		return result, nil
	}

	if ok := l.ensurePermissions(ctx, &result); !ok {
		result.Skipped = true
		l.observe("skipped", started, len(snapshot.Locked), len(snapshot.Schedules))
		return result, nil
	}

	desired := scheduler.NewSet()
	for _, entry := range snapshot.Locked {
		desired[entry.PackageName] = scheduler.Entry{PackageName: entry.PackageName, UnlockAt: entry.UnlockAt}
	}
	delta := scheduler.Diff(l.pushed, desired)
	l.push(ctx, now, delta, &result)
	l.syncSchedules(ctx, snapshot.Schedules, &result)

	outcome := "ok"
	if len(result.Failures) > 0 {
		outcome = "partial"
		for _, failure := range result.Failures {
			l.logger.WarnContext(ctx, "bridge sync failed", "error", failure)
		}
	}
	if len(result.Pushed) > 0 || len(result.Released) > 0 {
		l.logger.InfoContext(ctx, "locked set pushed", "locked", result.Pushed, "released", result.Released)
	}
	l.observe(outcome, started, len(snapshot.Locked), len(snapshot.Schedules))
	return result, nil
}

func (l *Loop) ensurePermissions(ctx context.Context, result *Result) bool {
	callCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()

	granted, err := l.bridge.HasRequiredPermissions(callCtx)
	l.observeCall("permissions", err)
	if err != nil {
		result.Failures = append(result.Failures, &BridgeSyncError{Op: "permissions", Err: err})
		if errors.Is(err, bridge.ErrNoAgent) {
			l.logger.DebugContext(ctx, "no monitoring agent connected")
		} else {
			l.logger.WarnContext(ctx, "permission check failed", "error", err)
		}
		return false
	}
	if granted {
		return true
	}

	l.logger.WarnContext(ctx, "monitoring agent lacks permissions; requesting")
	err = l.bridge.RequestPermissions(callCtx)
	l.observeCall("request_permissions", err)
	if err != nil {
		result.Failures = append(result.Failures, &BridgeSyncError{Op: "request_permissions", Err: err})
	}
	return false
}

func (l *Loop) push(ctx context.Context, now time.Time, delta scheduler.Delta, result *Result) {
	var (
		mu       sync.Mutex
		locked   []scheduler.Entry
		released []string
	)
	g := new(errgroup.Group)
	g.SetLimit(l.concurrency)

	for _, entry := range delta.Lock {
		entry := entry
		g.Go(func() error {
			minutes := application.MinutesRemaining(application.LockEntry{PackageName: entry.PackageName, UnlockAt: entry.UnlockAt}, now)
			err := l.call(ctx, "lock", func(callCtx context.Context) error {
				return l.bridge.Lock(callCtx, entry.PackageName, minutes)
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, &BridgeSyncError{Op: "lock", Package: entry.PackageName, Err: err})
				return nil
			}
			locked = append(locked, entry)
			return nil
		})
	}
	for _, pkg := range delta.Unlock {
		pkg := pkg
		g.Go(func() error {
			err := l.call(ctx, "unlock", func(callCtx context.Context) error {
				return l.bridge.Unlock(callCtx, pkg)
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, &BridgeSyncError{Op: "unlock", Package: pkg, Err: err})
				return nil
			}
			released = append(released, pkg)
			return nil
		})
	}
	_ = g.Wait()

	for _, entry := range locked {
		l.pushed[entry.PackageName] = entry
	}
	for _, pkg := range released {
		delete(l.pushed, pkg)
	}
	result.Pushed = scheduler.NewSet(locked...).Packages()
	sort.Strings(released)
	result.Released = released
}

func (l *Loop) syncSchedules(ctx context.Context, schedules []application.Schedule, result *Result) {
	if l.schedulesSynced && sameSchedules(l.pushedSchedules, schedules) {
		return
	}
	err := l.call(ctx, "set_schedules", func(callCtx context.Context) error {
		return l.bridge.SetSchedules(callCtx, schedules)
	})
	if err != nil {
		result.Failures = append(result.Failures, &BridgeSyncError{Op: "set_schedules", Err: err})
		return
	}
	l.pushedSchedules = schedules
	l.schedulesSynced = true
}

func (l *Loop) call(ctx context.Context, op string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()
	err := fn(callCtx)
	l.observeCall(op, err)
	return err
}

func (l *Loop) observe(outcome string, started time.Time, locked, schedules int) {
	if l.observer != nil {
		l.observer.ObserveReconcile(outcome, time.Since(started), locked, schedules)
	}
}

func (l *Loop) observeCall(op string, err error) {
	if l.observer != nil {
		l.observer.ObserveBridgeCall(op, err)
	}
}

func sameSchedules(a, b []application.Schedule) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// retryable reports whether any failure happened while an agent was connected.
func retryable(failures []error) bool {
	for _, err := range failures {
		if !errors.Is(err, bridge.ErrNoAgent) {
			return true
		}
	}
	return false
}
