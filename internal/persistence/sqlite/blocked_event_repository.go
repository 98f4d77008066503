package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// BlockedEventRepository implements persistence.BlockedEventRepository using SQLite
type BlockedEventRepository struct {
	pool *ConnectionPool
}

// NewBlockedEventRepository creates a new SQLite blocked event repository
func NewBlockedEventRepository(pool *ConnectionPool) *BlockedEventRepository {
	return &BlockedEventRepository{pool: pool}
}

// AppendBlockedEvent stores event and keeps only the newest retain events
func (r *BlockedEventRepository) AppendBlockedEvent(ctx context.Context, event persistence.BlockedEvent, retain int) error {
	return r.pool.WithWriteTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO blocked_events (package_name, app_name, blocked_at_ms) VALUES (?, ?, ?)",
			event.PackageName, event.AppName, event.BlockedAt.UnixMilli())
		if err != nil || retain <= 0 {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM blocked_events
			WHERE seq NOT IN (SELECT seq FROM blocked_events ORDER BY seq DESC LIMIT ?)
		`, retain)
		return err
	})
}

// ListBlockedEvents returns events in insertion order
func (r *BlockedEventRepository) ListBlockedEvents(ctx context.Context) ([]persistence.BlockedEvent, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT package_name, app_name, blocked_at_ms
		FROM blocked_events
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var events []persistence.BlockedEvent
	for rows.Next() {
		var (
			event     persistence.BlockedEvent
			blockedAt int64
		)
		if err := rows.Scan(&event.PackageName, &event.AppName, &blockedAt); err != nil {
			return nil, MapError(err)
		}
		event.BlockedAt = time.UnixMilli(blockedAt).UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return events, nil
}
