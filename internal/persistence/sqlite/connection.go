package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/focusguard/internal/persistence"
	"github.com/example/focusguard/internal/persistence/sqlite/migration"
)

// ConnectionPool is the shared *sql.DB of a Store plus the busy retry policy
// applied to write transactions.
type ConnectionPool struct {
	db    *sql.DB
	retry Backoff
}

func NewConnectionPool(config migration.SQLiteConfig) (*ConnectionPool, error) {
	db, err := migration.OpenDatabase(config)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", config.Path, err)
	}
	return &ConnectionPool{db: db, retry: DefaultBackoff()}, nil
}

func (p *ConnectionPool) DB() *sql.DB { return p.db }

func (p *ConnectionPool) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *ConnectionPool) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// WithWriteTransaction runs fn in a transaction, committing when fn returns
// nil. The whole transaction is retried while SQLite reports SQLITE_BUSY.
// Returned errors are mapped onto the persistence sentinels.
func (p *ConnectionPool) WithWriteTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return p.retry.Do(ctx, func() error { return p.inTx(ctx, fn) })
}

func (p *ConnectionPool) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// MapError translates driver errors into persistence.ErrNotFound,
// ErrConflict or ErrBusy. modernc.org/sqlite exposes constraint and lock
// failures only through the message text.
func MapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %v", persistence.ErrNotFound, err)
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, persistence.ErrConflict),
		errors.Is(err, persistence.ErrBusy), errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}

	msg := err.Error()
	for _, marker := range []string{"UNIQUE constraint failed", "PRIMARY KEY constraint failed"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", persistence.ErrConflict, err)
		}
	}
	for _, marker := range []string{"database is locked", "database table is locked", "SQLITE_BUSY"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", persistence.ErrBusy, err)
		}
	}
	return err
}

// Backoff retries work that fails with persistence.ErrBusy, sleeping
// Initial, then Initial*Factor, and so on up to Max between attempts.
type Backoff struct {
	Retries int
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

func DefaultBackoff() Backoff {
	return Backoff{Retries: 3, Initial: 50 * time.Millisecond, Max: time.Second, Factor: 2}
}

// Do calls fn until it succeeds, fails with anything but ErrBusy, or the
// retries are used up. Errors pass through MapError.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	delay := b.Initial
	var err error
	for attempt := 0; ; attempt++ {
		if err = MapError(fn()); err == nil || !errors.Is(err, persistence.ErrBusy) {
			return err
		}
		if attempt == b.Retries {
			return fmt.Errorf("sqlite: still busy after %d retries: %w", b.Retries, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay = time.Duration(float64(delay) * b.Factor); delay > b.Max {
			delay = b.Max
		}
	}
}
