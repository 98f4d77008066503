// Package bridge talks to the native monitoring agent that enforces locks on
// the device.
package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/example/focusguard/internal/application"
)

var (
	// ErrNoAgent is returned when no monitoring agent is connected.
	ErrNoAgent = errors.New("bridge: no monitoring agent connected")
	// ErrAgentBusy is returned when the agent's outbound queue is full.
	ErrAgentBusy = errors.New("bridge: monitoring agent queue full")
)

// Bridge is the enforcement surface the reconciliation loop pushes to.
type Bridge interface {
	// SetSchedules replaces every schedule known to the agent.
	SetSchedules(ctx context.Context, schedules []application.Schedule) error
	// Lock blocks packageName. A nil durationMinutes locks until Unlock.
	Lock(ctx context.Context, packageName string, durationMinutes *int) error
	Unlock(ctx context.Context, packageName string) error
	HasRequiredPermissions(ctx context.Context) (bool, error)
	RequestPermissions(ctx context.Context) error
}

// QuotePicker supplies the quote attached to lock commands.
type QuotePicker interface {
	RandomQuote(ctx context.Context) (application.Quote, error)
}

// EventHandler consumes events reported by the agent.
type EventHandler interface {
	OnForegroundAppChanged(ctx context.Context, packageName, appName string, at time.Time)
	OnAppBlocked(ctx context.Context, packageName string)
	OnEmergencyUnlock(ctx context.Context, packageName string)
	OnDeviceUnlocked(ctx context.Context)
}

// Command types sent to the agent.
const (
	CommandSetSchedules       = "setSchedules"
	CommandLock               = "lock"
	CommandUnlock             = "unlock"
	CommandRequestPermissions = "requestPermissions"
)

// Event types sent by the agent.
const (
	EventAppChanged      = "appChanged"
	EventAppBlocked      = "appBlocked"
	EventEmergencyUnlock = "emergencyUnlock"
	EventPermissions     = "permissions"
	EventDeviceUnlocked  = "deviceUnlocked"
)

// Command is a frame sent to the agent.
type Command struct {
	Type            string                 `json:"type"`
	PackageName     string                 `json:"packageName,omitempty"`
	DurationMinutes *int                   `json:"durationMinutes,omitempty"`
	Schedules       []application.Schedule `json:"schedules,omitempty"`
	// Quote is shown on the block screen of a lock command.
	Quote *application.Quote `json:"quote,omitempty"`
}

// Event is a frame received from the agent.
type Event struct {
	Type        string     `json:"type"`
	PackageName string     `json:"packageName,omitempty"`
	AppName     string     `json:"appName,omitempty"`
	At          *time.Time `json:"at,omitempty"`
	Granted     *bool      `json:"granted,omitempty"`
}
