package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Schedules *ScheduleHandler
	Locks     *LockHandler
	Insights  *InsightsHandler
	Quotes    *QuoteHandler
	Bridge    http.Handler
	Metrics   http.Handler

	// AgentConnected feeds the health response. Optional.
	AgentConnected func() bool
	Observer       RequestObserver
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *slog.Logger
	Middleware     []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(Observe(cfg.Observer))
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	health := newResponder(cfg.Logger)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		resp := healthResponse{Status: "ok"}
		if cfg.AgentConnected != nil {
			connected := cfg.AgentConnected()
			resp.AgentConnected = &connected
		}
		health.writeJSON(req.Context(), w, http.StatusOK, resp)
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		if cfg.Bridge != nil {
			r.Method(http.MethodGet, "/bridge", cfg.Bridge)
		}

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.Observer, cfg.Logger))

			if h := cfg.Schedules; h != nil {
				r.Get("/schedules", h.List)
				r.Post("/schedules", h.Create)
				r.Post("/schedules/import", h.Import)
				r.Get("/schedules/{id}", h.Get)
				r.Patch("/schedules/{id}", h.Update)
				r.Delete("/schedules/{id}", h.Delete)
				r.Put("/schedules/{id}/enabled", h.SetEnabled)
			}

			if h := cfg.Locks; h != nil {
				r.Get("/locks", h.List)
				r.Post("/locks", h.Create)
				r.Delete("/locks/{pkg}", h.Delete)
				r.Post("/locks/{pkg}/emergency-unlock", h.EmergencyUnlock)
				r.Get("/blocked-events", h.BlockedEvents)
			}

			if h := cfg.Quotes; h != nil {
				r.Get("/quotes", h.List)
				r.Post("/quotes", h.Create)
				r.Get("/quotes/random", h.Random)
				r.Get("/quotes/settings", h.Settings)
				r.Patch("/quotes/settings", h.UpdateSettings)
				r.Delete("/quotes/{id}", h.Delete)
			}

			if h := cfg.Insights; h != nil {
				r.Get("/usage", h.Usage)
				r.Post("/usage", h.RecordUsage)
				r.Post("/usage/unlocks", h.RecordUnlock)
				r.Get("/lock-events", h.LockEvents)
				r.Post("/lock-events", h.RecordLockEvent)
				r.Get("/insights", h.Cards)
				r.Delete("/insights", h.Reset)
			}
		})
	})

	return r
}

type healthResponse struct {
	Status         string `json:"status"`
	AgentConnected *bool  `json:"agentConnected,omitempty"`
}
