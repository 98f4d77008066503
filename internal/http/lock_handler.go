package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/persistence"
)

type lockService interface {
	Locked(ctx context.Context, now time.Time) ([]application.LockEntry, error)
	LockNow(ctx context.Context, packageName string, duration application.LockDuration) (application.LockEntry, error)
	Unlock(ctx context.Context, packageName string) error
	EmergencyUnlock(ctx context.Context, packageName string) error
	BlockedEvents(ctx context.Context) ([]persistence.BlockedEvent, error)
}

type LockHandler struct {
	service   lockService
	now       func() time.Time
	responder responder
}

func NewLockHandler(service lockService, now func() time.Time, logger *slog.Logger) *LockHandler {
	if now == nil {
		now = time.Now
	}
	return &LockHandler{service: service, now: now, responder: newResponder(logger)}
}

// List returns the merged locked set at request time.
func (h *LockHandler) List(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	entries, err := h.service.Locked(r.Context(), now)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	locks := make([]lockDTO, 0, len(entries))
	for _, entry := range entries {
		locks = append(locks, toLockDTO(entry, now))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listLocksResponse{Locks: locks})
}

// Create installs a manual lock. Omitting minutes locks indefinitely.
func (h *LockHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	duration := application.Indefinitely()
	if req.Minutes != nil {
		duration = application.Minutes(*req.Minutes)
	}

	entry, err := h.service.LockNow(r.Context(), req.PackageName, duration)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, lockResponse{Lock: toLockDTO(entry, h.now())})
}

func (h *LockHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unlock(r.Context(), packageParam(r)); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *LockHandler) EmergencyUnlock(w http.ResponseWriter, r *http.Request) {
	pkg := packageParam(r)
	handlerLogger(r.Context(), h.responder.logger, "locks", "emergency_unlock", "package", pkg).
		WarnContext(r.Context(), "emergency unlock requested over http")
	if err := h.service.EmergencyUnlock(r.Context(), pkg); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// BlockedEvents lists the launches the agent stopped, oldest first.
func (h *LockHandler) BlockedEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.BlockedEvents(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]blockedEventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, blockedEventDTO{
			PackageName: event.PackageName,
			AppName:     event.AppName,
			BlockedAt:   event.BlockedAt.UTC().Format(time.RFC3339),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, blockedEventsResponse{Events: out})
}

func packageParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "pkg"))
}

type lockRequest struct {
	PackageName string `json:"packageName"`
	Minutes     *int   `json:"minutes"`
}

type lockResponse struct {
	Lock lockDTO `json:"lock"`
}

type listLocksResponse struct {
	Locks []lockDTO `json:"locks"`
}

type lockDTO struct {
	PackageName      string   `json:"packageName"`
	Source           string   `json:"source"`
	UnlockAt         *string  `json:"unlockAt,omitempty"`
	MinutesRemaining *int     `json:"minutesRemaining,omitempty"`
	ScheduleIDs      []string `json:"scheduleIds,omitempty"`
}

func toLockDTO(entry application.LockEntry, now time.Time) lockDTO {
	dto := lockDTO{
		PackageName:      entry.PackageName,
		Source:           string(entry.Source),
		MinutesRemaining: application.MinutesRemaining(entry, now),
		ScheduleIDs:      entry.ScheduleIDs,
	}
	if entry.UnlockAt != nil {
		formatted := entry.UnlockAt.UTC().Format(time.RFC3339)
		dto.UnlockAt = &formatted
	}
	return dto
}

type blockedEventsResponse struct {
	Events []blockedEventDTO `json:"events"`
}

type blockedEventDTO struct {
	PackageName string `json:"packageName"`
	AppName     string `json:"appName,omitempty"`
	BlockedAt   string `json:"blockedAt"`
}
