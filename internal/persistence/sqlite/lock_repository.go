package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// ManualLockRepository implements persistence.ManualLockRepository using SQLite
type ManualLockRepository struct {
	pool *ConnectionPool
}

// NewManualLockRepository creates a new SQLite manual lock repository
func NewManualLockRepository(pool *ConnectionPool) *ManualLockRepository {
	return &ManualLockRepository{pool: pool}
}

// ListManualLocks returns every manual lock ordered by package name
func (r *ManualLockRepository) ListManualLocks(ctx context.Context) ([]persistence.ManualLock, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT package_name, unlock_at_ms, locked_at_ms
		FROM manual_locks
		ORDER BY package_name ASC
	`)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var locks []persistence.ManualLock
	for rows.Next() {
		var (
			lock     persistence.ManualLock
			unlockAt sql.NullInt64
			lockedAt int64
		)
		if err := rows.Scan(&lock.PackageName, &unlockAt, &lockedAt); err != nil {
			return nil, MapError(err)
		}
		if unlockAt.Valid {
			at := time.UnixMilli(unlockAt.Int64).UTC()
			lock.UnlockAt = &at
		}
		lock.LockedAt = time.UnixMilli(lockedAt).UTC()
		locks = append(locks, lock)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return locks, nil
}

// ReplaceManualLocks swaps the stored set for locks in one transaction
func (r *ManualLockRepository) ReplaceManualLocks(ctx context.Context, locks []persistence.ManualLock) error {
	return r.pool.WithWriteTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM manual_locks"); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO manual_locks (package_name, unlock_at_ms, locked_at_ms) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, lock := range locks {
			var unlockAt sql.NullInt64
			if lock.UnlockAt != nil {
				unlockAt = sql.NullInt64{Int64: lock.UnlockAt.UnixMilli(), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, lock.PackageName, unlockAt, lock.LockedAt.UnixMilli()); err != nil {
				return err
			}
		}
		return nil
	})
}
