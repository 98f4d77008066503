package application

import (
	"slices"
	"time"

	"github.com/example/focusguard/internal/persistence"
	"github.com/example/focusguard/internal/recurrence"
)

// DefaultOwnerID is stamped on schedules when no owner is configured.
const DefaultOwnerID = "local_user"

// Schedule is a scheduled lock as exposed by the services.
type Schedule struct {
	ID              string            `json:"id"`
	OwnerID         string            `json:"ownerId"`
	AppPackageNames []string          `json:"appPackageNames"`
	ScheduleConfig  recurrence.Config `json:"scheduleConfig"`
	IsEnabled       bool              `json:"isEnabled"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// ScheduleInput captures caller provided fields of a new schedule.
type ScheduleInput struct {
	AppPackageNames []string          `json:"appPackageNames"`
	ScheduleConfig  recurrence.Config `json:"scheduleConfig"`
}

// SchedulePatch is a partial update. Nil fields are left unchanged.
type SchedulePatch struct {
	AppPackageNames []string           `json:"appPackageNames,omitempty"`
	ScheduleConfig  *recurrence.Config `json:"scheduleConfig,omitempty"`
	IsEnabled       *bool              `json:"isEnabled,omitempty"`
}

// LockSource tells why a package is locked.
type LockSource string

const (
	// SourceManual marks a "lock now" entry.
	SourceManual LockSource = "manual"
	// SourceSchedule marks a package held by at least one active schedule.
	SourceSchedule LockSource = "schedule"
)

// LockEntry is one package of the computed locked set.
//
// A package covered by an active schedule reports SourceSchedule and no
// UnlockAt, even when it also carries a manual lock: the schedule keeps it
// locked past any manual expiry.
type LockEntry struct {
	PackageName string     `json:"packageName"`
	Source      LockSource `json:"source"`
	UnlockAt    *time.Time `json:"unlockAt,omitempty"`
	ScheduleIDs []string   `json:"scheduleIds,omitempty"`
}

// Snapshot is a consistent view of the locked set and the enabled schedules.
type Snapshot struct {
	TakenAt   time.Time   `json:"takenAt"`
	Locked    []LockEntry `json:"locked"`
	Schedules []Schedule  `json:"schedules"`
}

// Packages returns the package names of the locked set.
func (s Snapshot) Packages() []string {
	out := make([]string, 0, len(s.Locked))
	for _, entry := range s.Locked {
		out = append(out, entry.PackageName)
	}
	return out
}

// SweepResult lists what SweepExpired removed.
type SweepResult struct {
	ExpiredLocks     []string `json:"expiredLocks"`
	DeletedSchedules []string `json:"deletedSchedules"`
}

// Empty reports whether the sweep removed nothing.
func (r SweepResult) Empty() bool {
	return len(r.ExpiredLocks) == 0 && len(r.DeletedSchedules) == 0
}

func scheduleFromPersistence(record persistence.ScheduledLock) Schedule {
	return Schedule{
		ID:              record.ID,
		OwnerID:         record.OwnerID,
		AppPackageNames: slices.Clone(record.AppPackageNames),
		ScheduleConfig:  record.ScheduleConfig,
		IsEnabled:       record.IsEnabled,
		CreatedAt:       record.CreatedAt,
	}
}

func (s Schedule) record() persistence.ScheduledLock {
	return persistence.ScheduledLock{
		ID:              s.ID,
		OwnerID:         s.OwnerID,
		AppPackageNames: slices.Clone(s.AppPackageNames),
		ScheduleConfig:  s.ScheduleConfig,
		IsEnabled:       s.IsEnabled,
		CreatedAt:       s.CreatedAt,
	}
}

func (s Schedule) clone() Schedule {
	s.AppPackageNames = slices.Clone(s.AppPackageNames)
	return s
}

func cloneSchedules(schedules []Schedule) []Schedule {
	if schedules == nil {
		return nil
	}
	out := make([]Schedule, len(schedules))
	for i, schedule := range schedules {
		out[i] = schedule.clone()
	}
	return out
}
