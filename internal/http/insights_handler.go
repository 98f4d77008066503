package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/insights"
	"github.com/example/focusguard/internal/persistence"
)

type insightsService interface {
	RecordAppUsage(ctx context.Context, packageName, appName string, durationMs int64) error
	RecordUnlock(ctx context.Context) error
	RecordLockEvent(ctx context.Context, appName, packageName string, start, end time.Time, wasSuccessful bool) error
	GetInsightCards(ctx context.Context, period insights.Period) ([]insights.Card, error)
	AppUsage(ctx context.Context) ([]persistence.AppUsage, error)
	DailyUsage(ctx context.Context) ([]persistence.DailyUsage, error)
	LockEvents(ctx context.Context) ([]persistence.LockEvent, error)
	Reset(ctx context.Context) error
}

type InsightsHandler struct {
	service   insightsService
	responder responder
}

func NewInsightsHandler(service insightsService, logger *slog.Logger) *InsightsHandler {
	return &InsightsHandler{service: service, responder: newResponder(logger)}
}

func (h *InsightsHandler) Cards(w http.ResponseWriter, r *http.Request) {
	period, err := insights.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, application.NewValidationError("period", "must be one of daily, weekly, monthly, yearly"))
		return
	}

	cards, err := h.service.GetInsightCards(r.Context(), period)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, cardsResponse{Period: string(period), Cards: cards})
}

func (h *InsightsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context()); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *InsightsHandler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req usageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	if err := h.service.RecordAppUsage(r.Context(), req.PackageName, req.AppName, req.DurationMs); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *InsightsHandler) RecordUnlock(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RecordUnlock(r.Context()); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *InsightsHandler) Usage(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.AppUsage(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	daily, err := h.service.DailyUsage(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := usageResponse{
		Apps:  make([]appUsageDTO, 0, len(apps)),
		Daily: make([]dailyUsageDTO, 0, len(daily)),
	}
	for _, app := range apps {
		resp.Apps = append(resp.Apps, appUsageDTO{
			PackageName: app.PackageName,
			AppName:     app.AppName,
			TotalTimeMs: app.TotalTimeMs,
			LastUsed:    app.LastUsed.UTC().Format(time.RFC3339),
		})
	}
	for _, day := range daily {
		resp.Daily = append(resp.Daily, dailyUsageDTO(day))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *InsightsHandler) RecordLockEvent(w http.ResponseWriter, r *http.Request) {
	var req lockEventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	missing := map[string]string{}
	if req.StartTime == nil {
		missing["startTime"] = "start time is required"
	}
	if req.EndTime == nil {
		missing["endTime"] = "end time is required"
	}
	if len(missing) > 0 {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: missing})
		return
	}

	err := h.service.RecordLockEvent(r.Context(), req.AppName, req.PackageName, *req.StartTime, *req.EndTime, req.WasSuccessful)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *InsightsHandler) LockEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.LockEvents(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]lockEventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, lockEventDTO{
			ID:            event.ID,
			AppName:       event.AppName,
			PackageName:   event.PackageName,
			StartTime:     event.StartTime.UTC().Format(time.RFC3339),
			EndTime:       event.EndTime.UTC().Format(time.RFC3339),
			WasSuccessful: event.WasSuccessful,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, lockEventsResponse{Events: out})
}

type cardsResponse struct {
	Period string          `json:"period"`
	Cards  []insights.Card `json:"cards"`
}

type usageRequest struct {
	PackageName string `json:"packageName"`
	AppName     string `json:"appName"`
	DurationMs  int64  `json:"durationMs"`
}

type lockEventRequest struct {
	AppName       string     `json:"appName"`
	PackageName   string     `json:"packageName"`
	StartTime     *time.Time `json:"startTime"`
	EndTime       *time.Time `json:"endTime"`
	WasSuccessful bool       `json:"wasSuccessful"`
}

type usageResponse struct {
	Apps  []appUsageDTO   `json:"apps"`
	Daily []dailyUsageDTO `json:"daily"`
}

type appUsageDTO struct {
	PackageName string `json:"packageName"`
	AppName     string `json:"appName"`
	TotalTimeMs int64  `json:"totalTimeMs"`
	LastUsed    string `json:"lastUsed"`
}

type dailyUsageDTO struct {
	Date        string `json:"date"`
	TotalTimeMs int64  `json:"totalTimeMs"`
	UnlockCount int    `json:"unlockCount"`
}

type lockEventsResponse struct {
	Events []lockEventDTO `json:"events"`
}

type lockEventDTO struct {
	ID            string `json:"id"`
	AppName       string `json:"appName"`
	PackageName   string `json:"packageName"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	WasSuccessful bool   `json:"wasSuccessful"`
}
