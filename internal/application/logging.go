package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/focusguard/internal/logging"
	"github.com/example/focusguard/internal/persistence"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, base, "service", serviceName, operation, attrs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var pErr *PersistenceError
	if errors.As(err, &pErr) {
		if errors.Is(err, persistence.ErrBusy) {
			return "persistence_busy"
		}
		return "persistence"
	}

	return "unexpected"
}

// mapRepoError converts repository failures into service errors.
func mapRepoError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return &PersistenceError{Op: op, Err: err}
}
