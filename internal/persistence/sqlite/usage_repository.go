package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// UsageRepository implements persistence.UsageRepository using SQLite
type UsageRepository struct {
	pool *ConnectionPool
}

// NewUsageRepository creates a new SQLite usage repository
func NewUsageRepository(pool *ConnectionPool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// RecordUsage folds sample into app_usage and daily_usage in one transaction
func (r *UsageRepository) RecordUsage(ctx context.Context, sample persistence.UsageSample, retain int) error {
	return r.pool.WithWriteTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO app_usage (package_name, app_name, total_time_ms, last_used_ms)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(package_name) DO UPDATE SET
				app_name = CASE WHEN excluded.app_name <> '' THEN excluded.app_name ELSE app_usage.app_name END,
				total_time_ms = app_usage.total_time_ms + excluded.total_time_ms,
				last_used_ms = excluded.last_used_ms
		`, sample.PackageName, sample.AppName, sample.DurationMs, sample.At.UnixMilli())
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO daily_usage (date, total_time_ms, unlock_count)
			VALUES (?, ?, 0)
			ON CONFLICT(date) DO UPDATE SET
				total_time_ms = daily_usage.total_time_ms + excluded.total_time_ms
		`, sample.Day, sample.DurationMs)
		if err != nil {
			return err
		}

		return trimDailyUsage(ctx, tx, retain)
	})
}

// AddUnlock increments the unlock counter of day
func (r *UsageRepository) AddUnlock(ctx context.Context, day string, retain int) error {
	return r.pool.WithWriteTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO daily_usage (date, total_time_ms, unlock_count)
			VALUES (?, 0, 1)
			ON CONFLICT(date) DO UPDATE SET
				unlock_count = daily_usage.unlock_count + 1
		`, day)
		if err != nil {
			return err
		}
		return trimDailyUsage(ctx, tx, retain)
	})
}

// ListAppUsage returns app totals ordered by package name
func (r *UsageRepository) ListAppUsage(ctx context.Context) ([]persistence.AppUsage, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT package_name, app_name, total_time_ms, last_used_ms
		FROM app_usage
		ORDER BY package_name ASC
	`)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var records []persistence.AppUsage
	for rows.Next() {
		var record persistence.AppUsage
		var lastUsed int64
		if err := rows.Scan(&record.PackageName, &record.AppName, &record.TotalTimeMs, &lastUsed); err != nil {
			return nil, MapError(err)
		}
		record.LastUsed = time.UnixMilli(lastUsed).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return records, nil
}

// ListDailyUsage returns daily rollups ordered by date ascending
func (r *UsageRepository) ListDailyUsage(ctx context.Context) ([]persistence.DailyUsage, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT date, total_time_ms, unlock_count
		FROM daily_usage
		ORDER BY date ASC
	`)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var records []persistence.DailyUsage
	for rows.Next() {
		var record persistence.DailyUsage
		if err := rows.Scan(&record.Date, &record.TotalTimeMs, &record.UnlockCount); err != nil {
			return nil, MapError(err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return records, nil
}

// ResetUsage removes every usage record
func (r *UsageRepository) ResetUsage(ctx context.Context) error {
	return r.pool.WithWriteTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM app_usage"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM daily_usage")
		return err
	})
}

func trimDailyUsage(ctx context.Context, tx *sql.Tx, retain int) error {
	if retain <= 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		DELETE FROM daily_usage
		WHERE date NOT IN (SELECT date FROM daily_usage ORDER BY date DESC LIMIT ?)
	`, retain)
	return err
}

// LockEventRepository implements persistence.LockEventRepository using SQLite
type LockEventRepository struct {
	pool *ConnectionPool
}

// NewLockEventRepository creates a new SQLite lock event repository
func NewLockEventRepository(pool *ConnectionPool) *LockEventRepository {
	return &LockEventRepository{pool: pool}
}

// AppendLockEvent stores event and keeps only the newest retain events
func (r *LockEventRepository) AppendLockEvent(ctx context.Context, event persistence.LockEvent, retain int) error {
	return r.pool.WithWriteTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO lock_events (id, app_name, package_name, start_time_ms, end_time_ms, was_successful)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			event.ID,
			event.AppName,
			event.PackageName,
			event.StartTime.UnixMilli(),
			event.EndTime.UnixMilli(),
			event.WasSuccessful,
		)
		if err != nil {
			return err
		}

		if retain <= 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM lock_events
			WHERE seq NOT IN (SELECT seq FROM lock_events ORDER BY seq DESC LIMIT ?)
		`, retain)
		return err
	})
}

// ListLockEvents returns events in insertion order
func (r *LockEventRepository) ListLockEvents(ctx context.Context) ([]persistence.LockEvent, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, app_name, package_name, start_time_ms, end_time_ms, was_successful
		FROM lock_events
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var events []persistence.LockEvent
	for rows.Next() {
		var (
			event      persistence.LockEvent
			start, end int64
		)
		if err := rows.Scan(&event.ID, &event.AppName, &event.PackageName, &start, &end, &event.WasSuccessful); err != nil {
			return nil, MapError(err)
		}
		event.StartTime = time.UnixMilli(start).UTC()
		event.EndTime = time.UnixMilli(end).UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return events, nil
}

// ResetLockEvents removes every lock event
func (r *LockEventRepository) ResetLockEvents(ctx context.Context) error {
	return r.pool.WithWriteTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM lock_events")
		return err
	})
}
