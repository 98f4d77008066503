package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/focusguard/internal/persistence/sqlite"
	"github.com/example/focusguard/internal/persistence/sqlite/migration"
)

// NewSQLiteStore opens a migrated store in a temporary directory. The store
// is closed when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	config := migration.DefaultSQLiteConfig(filepath.Join(tb.TempDir(), "focusguard.db"))
	store, err := sqlite.Open(context.Background(), config, time.UTC, DiscardLogger())
	if err != nil {
		tb.Fatalf("failed to open store: %v", err)
	}
	tb.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
