package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/focusguard/internal/application"
)

type quoteService interface {
	Settings(ctx context.Context) (application.QuoteSettings, error)
	UpdateSettings(ctx context.Context, patch application.QuoteSettingsPatch) (application.QuoteSettings, error)
	CustomQuotes(ctx context.Context) ([]application.Quote, error)
	AddCustomQuote(ctx context.Context, input application.QuoteInput) (application.Quote, error)
	DeleteCustomQuote(ctx context.Context, id string) error
	RandomQuote(ctx context.Context) (application.Quote, error)
}

type QuoteHandler struct {
	service   quoteService
	responder responder
}

func NewQuoteHandler(service quoteService, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{service: service, responder: newResponder(logger)}
}

// List returns the custom quotes. With ?category= it returns the built-in
// quotes of that category followed by the matching custom ones.
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.service.CustomQuotes(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category != "" {
		builtin := application.DefaultQuotes(category)
		if len(builtin) == 0 {
			h.responder.handleServiceError(r.Context(), w, application.NewValidationError("category", "unknown category"))
			return
		}
		for _, quote := range quotes {
			if quote.Category == category {
				builtin = append(builtin, quote)
			}
		}
		quotes = builtin
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listQuotesResponse{Quotes: quotes})
}

func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req application.QuoteInput
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	quote, err := h.service.AddCustomQuote(r.Context(), req)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, quoteResponse{Quote: quote})
}

func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCustomQuote(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Random answers with the quote the block screen would show now.
func (h *QuoteHandler) Random(w http.ResponseWriter, r *http.Request) {
	quote, err := h.service.RandomQuote(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, quoteResponse{Quote: quote})
}

func (h *QuoteHandler) Settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newQuoteSettingsResponse(settings))
}

func (h *QuoteHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req application.QuoteSettingsPatch
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	settings, err := h.service.UpdateSettings(r.Context(), req)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newQuoteSettingsResponse(settings))
}

type listQuotesResponse struct {
	Quotes []application.Quote `json:"quotes"`
}

type quoteResponse struct {
	Quote application.Quote `json:"quote"`
}

type quoteSettingsResponse struct {
	application.QuoteSettings
	Categories []string `json:"categories"`
}

func newQuoteSettingsResponse(settings application.QuoteSettings) quoteSettingsResponse {
	return quoteSettingsResponse{QuoteSettings: settings, Categories: application.QuoteCategories()}
}
