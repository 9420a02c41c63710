package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/driftwatchhq/driftwatch/internal/api/alerts"
	"github.com/driftwatchhq/driftwatch/internal/api/integrations"
	"github.com/driftwatchhq/driftwatch/internal/api/middleware"
	"github.com/driftwatchhq/driftwatch/internal/api/watches"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogger(s.log))
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer(s.log))

	watchHandler := watches.NewHandler(s.storage, s.reconciler, s.log)
	alertHandler := alerts.NewHandler(s.storage, s.log)
	integrationHandler := integrations.NewHandler(s.storage, s.log)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/watches", func(r chi.Router) {
			r.Post("/", watchHandler.Create)
			r.Get("/", watchHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", watchHandler.GetByID)
				r.Patch("/", watchHandler.Update)
				r.Delete("/", watchHandler.Delete)
				r.Post("/check", watchHandler.Check)
				r.Post("/rebaseline", watchHandler.Rebaseline)
				r.Get("/alerts", alertHandler.ListByWatch)
			})
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Get("/{id}", alertHandler.GetByID)
			r.Post("/{id}/ack", alertHandler.Acknowledge)
		})

		r.Route("/integrations", func(r chi.Router) {
			r.Route("/{orgID}/{provider}", func(r chi.Router) {
				r.Put("/", integrationHandler.Connect)
				r.Get("/", integrationHandler.Status)
				r.Delete("/", integrationHandler.Disconnect)
			})
		})
	})

	// Scheduled trigger: a cron invoker with the shared secret sweeps the
	// whole active fleet in one call.
	r.Group(func(r chi.Router) {
		r.Use(middleware.CronSecret(s.config.CronSecret))
		r.Post("/internal/run", s.handleRun)
	})

	// Health check (public)
	r.Get("/healthz", s.healthHandler.Healthz)

	return r
}

// handleRun executes one full reconciliation pass and reports the counts.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.scheduler.RunAll(r.Context())
	if err != nil {
		s.log.Error("triggered run failed", "error", err)
		JSONError(w, ErrInternalServer)
		return
	}
	OK(w, summary)
}
