package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestScanner_Scan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		files         fstest.MapFS
		expectedOrder []string
		expectedErr   error
	}{
		{
			name: "sorts numerically and ignores other files",
			files: fstest.MapFS{
				"migrations/010_later.sql":       {Data: []byte("CREATE TABLE c (id TEXT);")},
				"migrations/002_second.sql":      {Data: []byte("CREATE TABLE b (id TEXT);")},
				"migrations/001_initial.sql":     {Data: []byte("CREATE TABLE a (id TEXT);")},
				"migrations/README.md":           {Data: []byte("# notes")},
				"migrations/nested/003_skip.sql": {Data: []byte("CREATE TABLE d (id TEXT);")},
			},
			expectedOrder: []string{"001", "002", "010"},
		},
		{
			name:          "empty directory",
			files:         fstest.MapFS{"migrations/.keep": {Data: []byte{}}},
			expectedOrder: nil,
		},
		{
			name: "rejects malformed filename",
			files: fstest.MapFS{
				"migrations/initial.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
			},
			expectedErr: ErrInvalidMigrationFile,
		},
		{
			name: "rejects duplicate versions",
			files: fstest.MapFS{
				"migrations/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
				"migrations/001_b.sql": {Data: []byte("CREATE TABLE b (id TEXT);")},
			},
			expectedErr: ErrDuplicateVersion,
		},
		{
			name: "rejects comment-only migration",
			files: fstest.MapFS{
				"migrations/001_empty.sql": {Data: []byte("-- nothing here\n")},
			},
			expectedErr: ErrInvalidMigrationFile,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			migrations, err := NewScanner(tt.files, "migrations").Scan()
			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected %v, got %v", tt.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if len(migrations) != len(tt.expectedOrder) {
				t.Fatalf("expected %d migrations, got %d", len(tt.expectedOrder), len(migrations))
			}
			for i, version := range tt.expectedOrder {
				if migrations[i].Version != version {
					t.Fatalf("position %d: expected version %s, got %s", i, version, migrations[i].Version)
				}
			}
		})
	}
}

func TestScanner_DescriptionAndChecksum(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"sql/001_manual_locks.sql": {Data: []byte("-- Description: Manual lock table\nCREATE TABLE manual_locks (package_name TEXT);")},
		"sql/002_usage_tables.sql": {Data: []byte("CREATE TABLE app_usage (package_name TEXT);")},
	}

	migrations, err := NewScanner(files, "sql").Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if migrations[0].Description != "Manual lock table" {
		t.Fatalf("unexpected description %q", migrations[0].Description)
	}
	if migrations[1].Description != "usage tables" {
		t.Fatalf("unexpected fallback description %q", migrations[1].Description)
	}
	if len(migrations[0].Checksum) != 64 || migrations[0].Checksum == migrations[1].Checksum {
		t.Fatalf("unexpected checksums %q / %q", migrations[0].Checksum, migrations[1].Checksum)
	}
	if migrations[0].FilePath != "sql/001_manual_locks.sql" {
		t.Fatalf("unexpected file path %q", migrations[0].FilePath)
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	statements := splitStatements(`
-- leading comment
CREATE TABLE a (id TEXT);

-- second
CREATE INDEX idx_a ON a(id);
;
`)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[1] != "CREATE INDEX idx_a ON a(id)" {
		t.Fatalf("unexpected statement %q", statements[1])
	}
}
