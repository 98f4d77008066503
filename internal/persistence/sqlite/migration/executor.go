package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	versionTableDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	checksum TEXT,
	execution_time_ms INTEGER
)`
	recordVersionSQL  = `INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`
	appliedVersionSQL = `SELECT version, applied_at, COALESCE(execution_time_ms, 0), COALESCE(checksum, '') FROM schema_migrations ORDER BY version`
)

// SQLiteExecutor applies migrations to a database/sql handle.
type SQLiteExecutor struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteExecutor(db *sql.DB) *SQLiteExecutor {
	return &SQLiteExecutor{db: db, now: time.Now}
}

// Apply runs the statements of m and its schema_migrations row in
// one transaction. Nothing is kept when any statement fails.
func (e *SQLiteExecutor) Apply(ctx context.Context, m Migration) (took time.Duration, err error) {
	statements := splitStatements(m.SQL)
	if len(statements) == 0 {
		return 0, wrap(m.Version, m.FilePath, "parse", fmt.Errorf("%w: no statements", ErrInvalidMigrationFile))
	}

	started := e.now()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrap(m.Version, "", "begin", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	for i, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return 0, wrap(m.Version, m.FilePath, fmt.Sprintf("statement %d", i+1), err)
		}
	}

	took = e.now().Sub(started)
	appliedAt := e.now().UTC().Format(time.RFC3339)
	if _, err = tx.ExecContext(ctx, recordVersionSQL, m.Version, appliedAt, m.Checksum, took.Milliseconds()); err != nil {
		return 0, wrap(m.Version, "", "record", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, wrap(m.Version, "", "commit", err)
	}
	return took, nil
}

func (e *SQLiteExecutor) EnsureVersionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, versionTableDDL); err != nil {
		return wrap("", "", "create schema_migrations", err)
	}
	return nil
}

// Applied lists schema_migrations in version order.
func (e *SQLiteExecutor) Applied(ctx context.Context) ([]Applied, error) {
	rows, err := e.db.QueryContext(ctx, appliedVersionSQL)
	if err != nil {
		return nil, wrap("", "", "list applied", err)
	}
	defer rows.Close()

	var applied []Applied
	for rows.Next() {
		var (
			row       Applied
			appliedAt string
			tookMs    int64
		)
		if err := rows.Scan(&row.Version, &appliedAt, &tookMs, &row.Checksum); err != nil {
			return nil, wrap("", "", "scan applied", err)
		}
		if row.AppliedAt, err = time.Parse(time.RFC3339, appliedAt); err != nil {
			return nil, wrap(row.Version, "", "parse applied_at", fmt.Errorf("%w: %v", ErrVersionTableCorrupt, err))
		}
		row.ExecutionTime = time.Duration(tookMs) * time.Millisecond
		applied = append(applied, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("", "", "list applied", err)
	}
	return applied, nil
}

// splitStatements cuts content on semicolons and drops blank and "--" lines.
// Semicolons inside string literals are not supported.
func splitStatements(content string) []string {
	var statements []string
	for _, chunk := range strings.Split(content, ";") {
		var kept []string
		for _, line := range strings.Split(chunk, "\n") {
			if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "--") {
				kept = append(kept, line)
			}
		}
		if len(kept) > 0 {
			statements = append(statements, strings.Join(kept, "\n"))
		}
	}
	return statements
}
