package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/recurrence"
)

const maxImportBytes = 1 << 20

type scheduleService interface {
	List(ctx context.Context) ([]application.Schedule, error)
	Get(ctx context.Context, id string) (application.Schedule, error)
	Add(ctx context.Context, input application.ScheduleInput) (application.Schedule, error)
	Update(ctx context.Context, id string, patch application.SchedulePatch) (application.Schedule, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (application.Schedule, error)
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, document []byte) (int, error)
}

type ScheduleHandler struct {
	service   scheduleService
	responder responder
}

func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, responder: newResponder(logger)}
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.service.List(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSchedulesResponse{Schedules: toScheduleDTOs(schedules)})
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.service.Get(r.Context(), scheduleID(r))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.renderSchedule(r.Context(), w, schedule, http.StatusOK)
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	schedule, err := h.service.Add(r.Context(), application.ScheduleInput{
		AppPackageNames: req.AppPackageNames,
		ScheduleConfig:  req.ScheduleConfig,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.renderSchedule(r.Context(), w, schedule, http.StatusCreated)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch application.SchedulePatch
	if err := decodeJSON(r, &patch); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	schedule, err := h.service.Update(r.Context(), scheduleID(r), patch)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.renderSchedule(r.Context(), w, schedule, http.StatusOK)
}

func (h *ScheduleHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if req.Enabled == nil {
		h.responder.handleServiceError(r.Context(), w, application.NewValidationError("enabled", "enabled is required"))
		return
	}

	schedule, err := h.service.SetEnabled(r.Context(), scheduleID(r), *req.Enabled)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.renderSchedule(r.Context(), w, schedule, http.StatusOK)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), scheduleID(r)); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Import accepts a stored schedule document of any supported version.
func (h *ScheduleHandler) Import(w http.ResponseWriter, r *http.Request) {
	document, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	imported, err := h.service.Import(r.Context(), document)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	handlerLogger(r.Context(), h.responder.logger, "schedules", "import", "bytes", len(document)).
		InfoContext(r.Context(), "schedule document imported", "imported", imported)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, importResponse{Imported: imported})
}

func (h *ScheduleHandler) renderSchedule(ctx context.Context, w http.ResponseWriter, schedule application.Schedule, status int) {
	h.responder.writeJSON(ctx, w, status, scheduleResponse{Schedule: toScheduleDTO(schedule)})
}

func scheduleID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}

type scheduleRequest struct {
	AppPackageNames []string          `json:"appPackageNames"`
	ScheduleConfig  recurrence.Config `json:"scheduleConfig"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type importResponse struct {
	Imported int `json:"imported"`
}

type scheduleResponse struct {
	Schedule scheduleDTO `json:"schedule"`
}

type listSchedulesResponse struct {
	Schedules []scheduleDTO `json:"schedules"`
}

type scheduleDTO struct {
	ID              string            `json:"id"`
	OwnerID         string            `json:"ownerId"`
	AppPackageNames []string          `json:"appPackageNames"`
	ScheduleConfig  recurrence.Config `json:"scheduleConfig"`
	IsEnabled       bool              `json:"isEnabled"`
	CreatedAt       string            `json:"createdAt"`
}

func toScheduleDTO(schedule application.Schedule) scheduleDTO {
	return scheduleDTO{
		ID:              schedule.ID,
		OwnerID:         schedule.OwnerID,
		AppPackageNames: append([]string(nil), schedule.AppPackageNames...),
		ScheduleConfig:  schedule.ScheduleConfig,
		IsEnabled:       schedule.IsEnabled,
		CreatedAt:       schedule.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toScheduleDTOs(schedules []application.Schedule) []scheduleDTO {
	out := make([]scheduleDTO, 0, len(schedules))
	for _, schedule := range schedules {
		out = append(out, toScheduleDTO(schedule))
	}
	return out
}
