package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// ScheduleRepository implements persistence.ScheduleRepository on the
// documents table. The whole collection is one versioned JSON document.
type ScheduleRepository struct {
	pool     *ConnectionPool
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewScheduleRepository creates a new SQLite schedule repository
func NewScheduleRepository(pool *ConnectionPool, loc *time.Location, logger *slog.Logger) *ScheduleRepository {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleRepository{
		pool:     pool,
		location: loc,
		logger:   logger,
		now:      time.Now,
	}
}

// LoadSchedules reads and decodes the schedule document. A missing document
// is an empty collection.
func (r *ScheduleRepository) LoadSchedules(ctx context.Context) ([]persistence.ScheduledLock, error) {
	var body string
	err := r.pool.DB().QueryRowContext(ctx,
		"SELECT body FROM documents WHERE key = ?", persistence.ScheduleDocumentKey,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, MapError(err)
	}

	schedules, version, err := persistence.DecodeSchedules([]byte(body), r.location)
	if err != nil {
		return nil, err
	}
	if version < persistence.ScheduleDocumentVersion {
		r.logger.InfoContext(ctx, "upgraded legacy schedule document",
			"from_version", version,
			"to_version", persistence.ScheduleDocumentVersion,
			"schedules", len(schedules),
		)
	}
	return schedules, nil
}

// SaveSchedules writes the whole collection as a current-version document.
func (r *ScheduleRepository) SaveSchedules(ctx context.Context, schedules []persistence.ScheduledLock) error {
	body, err := persistence.EncodeSchedules(schedules)
	if err != nil {
		return fmt.Errorf("sqlite: encode schedules: %w", err)
	}

	return r.putDocument(ctx, persistence.ScheduleDocumentVersion, body)
}

// PutRawDocument stores body under the schedule key as-is. It is used to
// import documents exported by older releases.
func (r *ScheduleRepository) PutRawDocument(ctx context.Context, version int, body []byte) error {
	return r.putDocument(ctx, version, body)
}

func (r *ScheduleRepository) putDocument(ctx context.Context, version int, body []byte) error {
	return r.pool.WithWriteTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (key, version, body, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				version = excluded.version,
				body = excluded.body,
				updated_at = excluded.updated_at
		`, persistence.ScheduleDocumentKey, version, string(body), r.now().UTC().Format(time.RFC3339))
		return err
	})
}
