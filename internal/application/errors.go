package application

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested schedule or manual lock does not exist.
	ErrNotFound = errors.New("application: not found")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver,
// prefixing each field with prefix.
func (v *ValidationError) merge(prefix string, other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(prefix+field, msg)
	}
}

// NewValidationError builds a ValidationError holding a single field issue.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// PersistenceError reports a failed repository operation.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("application: %s: %v", e.Op, e.Err)
}

// Unwrap exposes the repository error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
