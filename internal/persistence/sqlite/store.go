package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/focusguard/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store bundles the SQLite repositories over one connection pool.
type Store struct {
	pool       *ConnectionPool
	migrations *migration.Manager

	Schedules     *ScheduleRepository
	ManualLocks   *ManualLockRepository
	Usage         *UsageRepository
	LockEvents    *LockEventRepository
	BlockedEvents *BlockedEventRepository
	Quotes        *QuoteRepository
}

// Open connects to the database, applies pending migrations and wires the
// repositories. Legacy schedule documents are interpreted in loc.
func Open(ctx context.Context, config migration.SQLiteConfig, loc *time.Location, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	manager := migration.NewManager(migration.NewScanner(migrationFiles, "migrations"), migration.NewSQLiteExecutor(pool.DB()), logger)
	if err := manager.Up(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("sqlite: migrate %s: %w", config.Path, err)
	}

	return &Store{
		pool:          pool,
		migrations:    manager,
		Schedules:     NewScheduleRepository(pool, loc, logger),
		ManualLocks:   NewManualLockRepository(pool),
		Usage:         NewUsageRepository(pool),
		LockEvents:    NewLockEventRepository(pool),
		BlockedEvents: NewBlockedEventRepository(pool),
		Quotes:        NewQuoteRepository(pool),
	}, nil
}

// MigrationStatus reports applied and pending schema migrations.
func (s *Store) MigrationStatus(ctx context.Context) (*migration.Status, error) {
	return s.migrations.Status(ctx)
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
