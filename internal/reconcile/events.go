package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/bridge"
)

// LockEvents is the part of the lock manager that consumes agent events.
type LockEvents interface {
	OnForegroundAppChanged(ctx context.Context, packageName, appName string, at time.Time)
	OnAppBlocked(ctx context.Context, packageName string)
	EmergencyUnlock(ctx context.Context, packageName string) error
}

// UnlockCounter counts device unlocks.
type UnlockCounter interface {
	RecordUnlock(ctx context.Context) error
}

// EventRouter forwards agent events to the lock manager and the insights
// aggregator.
type EventRouter struct {
	locks   LockEvents
	unlocks UnlockCounter
	logger  *slog.Logger
}

var _ bridge.EventHandler = (*EventRouter)(nil)

// NewEventRouter constructs an EventRouter. unlocks may be nil.
func NewEventRouter(locks LockEvents, unlocks UnlockCounter, logger *slog.Logger) *EventRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventRouter{locks: locks, unlocks: unlocks, logger: logger.With("service", "agent_events")}
}

// OnForegroundAppChanged implements bridge.EventHandler.
func (r *EventRouter) OnForegroundAppChanged(ctx context.Context, packageName, appName string, at time.Time) {
	r.locks.OnForegroundAppChanged(ctx, packageName, appName, at)
}

// OnAppBlocked implements bridge.EventHandler.
func (r *EventRouter) OnAppBlocked(ctx context.Context, packageName string) {
	r.locks.OnAppBlocked(ctx, packageName)
}

// OnEmergencyUnlock implements bridge.EventHandler.
func (r *EventRouter) OnEmergencyUnlock(ctx context.Context, packageName string) {
	if err := r.locks.EmergencyUnlock(ctx, packageName); err != nil {
		level := slog.LevelError
		if errors.Is(err, application.ErrNotFound) {
			level = slog.LevelWarn
		}
		r.logger.Log(ctx, level, "emergency unlock from agent failed",
			"package", packageName, "error", err, "error_kind", application.ErrorKind(err))
	}
}

// OnDeviceUnlocked implements bridge.EventHandler.
func (r *EventRouter) OnDeviceUnlocked(ctx context.Context) {
	if r.unlocks == nil {
		return
	}
	if err := r.unlocks.RecordUnlock(ctx); err != nil {
		r.logger.ErrorContext(ctx, "unlock count failed", "error", err, "error_kind", application.ErrorKind(err))
	}
}
