package migration

import (
	"errors"
	"strings"
)

var (
	ErrMigrationFailed      = errors.New("migration failed")
	ErrInvalidMigrationFile = errors.New("malformed migration file")
	// ErrVersionConflict reports a gap in the sequence or an applied version
	// whose file is gone.
	ErrVersionConflict     = errors.New("migration version conflict")
	ErrInvalidVersion      = errors.New("malformed migration version")
	ErrDuplicateVersion    = errors.New("migration version used twice")
	ErrChecksumMismatch    = errors.New("applied migration was edited")
	ErrVersionTableCorrupt = errors.New("schema_migrations holds unreadable rows")
)

// Error locates a failure at a version and/or a file. Match the cause with
// errors.Is against the sentinels above or the driver error.
type Error struct {
	Version string
	File    string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("migration")
	if e.Version != "" {
		b.WriteString(" " + e.Version)
	}
	if e.File != "" {
		b.WriteString(" [" + e.File + "]")
	}
	b.WriteString(": " + e.Op + ": " + e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(version, file, op string, err error) error {
	return &Error{Version: version, File: file, Op: op, Err: err}
}
