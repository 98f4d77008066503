package migration

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteConfig describes how to open a database file.
type SQLiteConfig struct {
	Path              string
	BusyTimeout       time.Duration
	EnableForeignKeys bool
	JournalMode       string // DELETE, TRUNCATE, PERSIST, MEMORY, WAL or OFF
	Synchronous       string // OFF, NORMAL, FULL or EXTRA
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
}

// DefaultSQLiteConfig opens path in WAL mode with foreign keys on.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:              path,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		MaxOpenConns:      4,
		MaxIdleConns:      2,
		ConnMaxLifetime:   30 * time.Minute,
	}
}

var (
	journalModes = []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}
	syncModes    = []string{"OFF", "NORMAL", "FULL", "EXTRA"}
)

func (c SQLiteConfig) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Path) == "" {
		problems = append(problems, "path is empty")
	}
	if c.BusyTimeout < 0 {
		problems = append(problems, "busy timeout is negative")
	}
	if c.JournalMode != "" && !slices.Contains(journalModes, c.JournalMode) {
		problems = append(problems, fmt.Sprintf("unknown journal mode %q", c.JournalMode))
	}
	if c.Synchronous != "" && !slices.Contains(syncModes, c.Synchronous) {
		problems = append(problems, fmt.Sprintf("unknown synchronous mode %q", c.Synchronous))
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 || c.ConnMaxLifetime < 0 {
		problems = append(problems, "pool limits are negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("sqlite config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DSN renders a modernc.org/sqlite connection string. Pragmas go in the DSN
// so that every pooled connection runs them.
func (c SQLiteConfig) DSN() string {
	query := url.Values{}
	query.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.JournalMode != "" {
		query.Add("_pragma", fmt.Sprintf("journal_mode(%s)", c.JournalMode))
	}
	if c.Synchronous != "" {
		query.Add("_pragma", fmt.Sprintf("synchronous(%s)", c.Synchronous))
	}
	if c.EnableForeignKeys {
		query.Add("_pragma", "foreign_keys(1)")
	}
	query.Set("_txlock", "immediate")
	return "file:" + c.Path + "?" + query.Encode()
}

// OpenDatabase creates the parent directory of config.Path, opens the pool
// and pings it.
func OpenDatabase(config SQLiteConfig) (*sql.DB, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, wrap("", filepath.Dir(config.Path), "mkdir", err)
	}

	db, err := sql.Open("sqlite", config.DSN())
	if err != nil {
		return nil, err
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}
