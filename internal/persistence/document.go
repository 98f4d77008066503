package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/focusguard/internal/recurrence"
)

const (
	// ScheduleDocumentKey is the storage key of the schedule collection.
	ScheduleDocumentKey = "@FocusGuard:schedules"
	// ScheduleDocumentVersion is the version written by EncodeSchedules.
	ScheduleDocumentVersion = 1
)

type scheduleDocument struct {
	Version   int             `json:"version"`
	Schedules []ScheduledLock `json:"schedules"`
}

// EncodeSchedules renders the collection as a current-version document.
func EncodeSchedules(schedules []ScheduledLock) ([]byte, error) {
	if schedules == nil {
		schedules = []ScheduledLock{}
	}
	return json.Marshal(scheduleDocument{Version: ScheduleDocumentVersion, Schedules: schedules})
}

// DecodeSchedules parses a stored schedule document.
//
// A bare JSON array is the version 0 layout: owner ids live in "userId",
// createdAt is epoch milliseconds and schedule dates and times are full
// timestamps. Those are converted to calendar values in loc. Documents from
// a newer version fail with ErrUnsupportedVersion.
func DecodeSchedules(data []byte, loc *time.Location) ([]ScheduledLock, int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ScheduleDocumentVersion, nil
	}
	if loc == nil {
		loc = time.Local
	}

	if trimmed[0] == '[' {
		schedules, err := decodeLegacySchedules(trimmed, loc)
		return schedules, 0, err
	}

	var head struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if head.Version > ScheduleDocumentVersion || head.Version < 1 {
		return nil, head.Version, fmt.Errorf("%w: %d", ErrUnsupportedVersion, head.Version)
	}

	var doc scheduleDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, head.Version, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return doc.Schedules, doc.Version, nil
}

type legacySchedule struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	AppPackageNames []string        `json:"appPackageNames"`
	ScheduleConfig  legacyConfig    `json:"scheduleConfig"`
	IsEnabled       bool            `json:"isEnabled"`
	CreatedAt       json.RawMessage `json:"createdAt"`
}

type legacyConfig struct {
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	SelectedDays []bool `json:"selectedDays"`
}

func decodeLegacySchedules(data []byte, loc *time.Location) ([]ScheduledLock, error) {
	var legacy []legacySchedule
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	schedules := make([]ScheduledLock, 0, len(legacy))
	for i, item := range legacy {
		cfg, err := upgradeConfig(item.ScheduleConfig, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: schedule %d (%s): %v", ErrMalformedDocument, i, item.ID, err)
		}
		schedules = append(schedules, ScheduledLock{
			ID:              item.ID,
			OwnerID:         item.UserID,
			AppPackageNames: item.AppPackageNames,
			ScheduleConfig:  cfg,
			IsEnabled:       item.IsEnabled,
			CreatedAt:       legacyCreatedAt(item.CreatedAt),
		})
	}
	return schedules, nil
}

func upgradeConfig(in legacyConfig, loc *time.Location) (recurrence.Config, error) {
	var out recurrence.Config
	var err error

	if out.StartTime, err = legacyValue(in.StartTime, recurrence.TimeLayout, loc); err != nil {
		return out, fmt.Errorf("startTime: %w", err)
	}
	if out.EndTime, err = legacyValue(in.EndTime, recurrence.TimeLayout, loc); err != nil {
		return out, fmt.Errorf("endTime: %w", err)
	}
	if out.StartDate, err = legacyValue(in.StartDate, recurrence.DateLayout, loc); err != nil {
		return out, fmt.Errorf("startDate: %w", err)
	}
	if out.EndDate, err = legacyValue(in.EndDate, recurrence.DateLayout, loc); err != nil {
		return out, fmt.Errorf("endDate: %w", err)
	}
	copy(out.SelectedDays[:], in.SelectedDays)
	return out, nil
}

// legacyValue accepts either a value already in layout or a full timestamp,
// which is projected into loc.
func legacyValue(value, layout string, loc *time.Location) (string, error) {
	if value == "" {
		return "", nil
	}
	if _, err := time.ParseInLocation(layout, value, loc); err == nil {
		return value, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return "", err
	}
	return ts.In(loc).Format(layout), nil
}

func legacyCreatedAt(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil {
		return time.UnixMilli(millis).UTC()
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
