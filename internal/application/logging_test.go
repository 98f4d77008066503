package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/focusguard/internal/logging"
	"github.com/example/focusguard/internal/persistence"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLogger_PrefersContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctxLogger := slog.New(slog.NewTextHandler(&buf, nil))
	base := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx := logging.ContextWithLogger(context.Background(), ctxLogger)
	serviceLogger(ctx, base, "schedule_store", "add", "schedule_id", "schedule_1").Info("hello")

	out := buf.String()
	for _, want := range []string{"service=schedule_store", "operation=add", "schedule_id=schedule_1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, "not_found"},
		{NewValidationError("field", "bad"), "validation"},
		{&PersistenceError{Op: "save", Err: persistence.ErrBusy}, "persistence_busy"},
		{&PersistenceError{Op: "save", Err: errors.New("disk full")}, "persistence"},
		{context.DeadlineExceeded, "canceled"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	if !errors.Is(mapRepoError("load", persistence.ErrNotFound), ErrNotFound) {
		t.Fatalf("expected persistence.ErrNotFound to map to ErrNotFound")
	}
	var pErr *PersistenceError
	if !errors.As(mapRepoError("save", errors.New("disk full")), &pErr) || pErr.Op != "save" {
		t.Fatalf("expected PersistenceError")
	}
}
