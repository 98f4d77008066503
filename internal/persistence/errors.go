package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrUnsupportedVersion is returned when a stored document was written by a newer release.
	ErrUnsupportedVersion = errors.New("persistence: unsupported document version")
	// ErrMalformedDocument is returned when a stored document cannot be decoded.
	ErrMalformedDocument = errors.New("persistence: malformed document")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("persistence: conflict")
	// ErrBusy is returned when the database stayed locked after retries.
	ErrBusy = errors.New("persistence: database busy")
)
