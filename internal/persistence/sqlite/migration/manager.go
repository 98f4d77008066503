package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager brings a database up to the newest migration of a Source.
type Manager struct {
	source   Source
	executor Executor
	logger   *slog.Logger
}

func NewManager(source Source, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{source: source, executor: executor, logger: logger.With("component", "migration")}
}

// Up applies every pending migration in order and stops at the first failure.
// Migrations applied before the failure stay applied.
func (m *Manager) Up(ctx context.Context) error {
	started := time.Now()
	pending, err := m.Pending(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "cannot plan migrations", "error", err)
		return err
	}
	if len(pending) == 0 {
		m.logger.DebugContext(ctx, "schema up to date")
		return nil
	}

	for i, next := range pending {
		logger := m.logger.With("version", next.Version, "description", next.Description)
		took, err := m.executor.Apply(ctx, next)
		if err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return wrap(next.Version, next.FilePath, "apply", fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		logger.InfoContext(ctx, "migration applied", "step", i+1, "of", len(pending), "took", took)
	}
	m.logger.InfoContext(ctx, "schema migrated", "applied", len(pending), "took", time.Since(started))
	return nil
}

// Pending returns the migrations not yet applied. It fails when the files
// have a gap, when an applied version has no file, or when an applied file
// was edited afterwards.
func (m *Manager) Pending(ctx context.Context) ([]Migration, error) {
	available, err := m.source.Scan()
	if err != nil {
		return nil, err
	}
	if err := m.executor.EnsureVersionTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkSequence(available, applied); err != nil {
		return nil, err
	}

	byVersion := make(map[string]Applied, len(applied))
	for _, row := range applied {
		byVersion[row.Version] = row
	}
	var pending []Migration
	for _, candidate := range available {
		row, done := byVersion[candidate.Version]
		if !done {
			pending = append(pending, candidate)
			continue
		}
		if row.Checksum != "" && row.Checksum != candidate.Checksum {
			return nil, wrap(candidate.Version, candidate.FilePath, "verify",
				fmt.Errorf("%w: recorded %.12s, file %.12s", ErrChecksumMismatch, row.Checksum, candidate.Checksum))
		}
	}
	return pending, nil
}

func (m *Manager) Status(ctx context.Context) (*Status, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{PendingCount: len(pending), Applied: applied, Pending: pending}
	highest := -1
	for _, row := range applied {
		if n := versionNumber(row.Version); n > highest {
			highest, status.CurrentVersion = n, row.Version
		}
	}
	return status, nil
}

func checkSequence(available []Migration, applied []Applied) error {
	known := make(map[int]bool, len(available))
	for i, candidate := range available {
		n := versionNumber(candidate.Version)
		if i > 0 {
			if prev := versionNumber(available[i-1].Version); n != prev+1 {
				return fmt.Errorf("%w: version %03d is missing", ErrVersionConflict, prev+1)
			}
		}
		known[n] = true
	}
	for _, row := range applied {
		n := versionNumber(row.Version)
		if n < 0 {
			return wrap(row.Version, "", "check sequence", fmt.Errorf("%w: version %q", ErrVersionTableCorrupt, row.Version))
		}
		if !known[n] {
			return fmt.Errorf("%w: applied version %03d has no file", ErrVersionConflict, n)
		}
	}
	return nil
}
