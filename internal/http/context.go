package http

import (
	"context"
	"log/slog"

	"github.com/example/focusguard/internal/logging"
)

type requestIDKey struct{}

// ContextWithRequestID tags the context with the sequential request id.
func ContextWithRequestID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id assigned by RequestLogger.
func RequestIDFromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(requestIDKey{}).(uint64)
	return id, ok
}

func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, fallback, "handler", handlerName, operation, attrs...)
}
