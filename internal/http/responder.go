package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/logging"
)

var (
	errBadRequestBody = errors.New("request body is not valid JSON")
	errRateLimited    = errors.New("too many requests, retry later")
)

type statusInfo struct {
	code    string
	message string
}

var statuses = map[int]statusInfo{
	http.StatusBadRequest:          {"bad_request", "the request is malformed"},
	http.StatusNotFound:            {"not_found", "the requested resource does not exist"},
	http.StatusUnprocessableEntity: {"validation_failed", "the request contains invalid fields"},
	http.StatusTooManyRequests:     {"rate_limited", errRateLimited.Error()},
	http.StatusInternalServerError: {"internal_error", "internal server error"},
}

func describeStatus(status int) statusInfo {
	if info, ok := statuses[status]; ok {
		return info
	}
	return statuses[http.StatusInternalServerError]
}

// responder writes JSON bodies and error envelopes, logging through the
// request logger when RequestLogger attached one.
type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) log(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// writeJSON encodes payload with status. A nil payload or 204 writes only
// the status line.
func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.log(ctx).ErrorContext(ctx, "encode response", "error", err)
	}
}

// writeError answers with the envelope for status, using err as the message.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	info := describeStatus(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			info.message = msg
		}
		r.log(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: info.code, Message: info.message})
}

// handleServiceError maps application errors: validation to 422 with the
// field map, ErrNotFound to 404, anything else to a logged 500.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		vErr   *application.ValidationError
		status = http.StatusInternalServerError
		fields map[string]string
	)
	switch {
	case errors.As(err, &vErr):
		status, fields = http.StatusUnprocessableEntity, vErr.FieldErrors
	case errors.Is(err, application.ErrNotFound):
		status = http.StatusNotFound
	default:
		r.log(ctx).ErrorContext(ctx, "request failed", "error", err, "error_kind", application.ErrorKind(err))
	}
	info := describeStatus(status)
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: info.code, Message: info.message, Errors: fields})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadRequestBody
	}
	return nil
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
