package migration

import (
	"context"
	"time"
)

// Migration is one versioned SQL file.
type Migration struct {
	Version     string // zero padded, e.g. "001"
	Description string
	SQL         string
	FilePath    string // path inside the scanned fs.FS
	Checksum    string // hex BLAKE2b-256 of SQL
}

// Applied is a row of schema_migrations.
type Applied struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status is the result of Manager.Status.
type Status struct {
	CurrentVersion string
	PendingCount   int
	Applied        []Applied
	Pending        []Migration
}

// Source lists the available migrations in version order.
type Source interface {
	Scan() ([]Migration, error)
}

// Executor applies migrations and reads back what was applied.
type Executor interface {
	EnsureVersionTable(ctx context.Context) error
	Apply(ctx context.Context, m Migration) (time.Duration, error)
	Applied(ctx context.Context) ([]Applied, error)
}
