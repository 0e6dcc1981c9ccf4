package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fltops/autopilot/internal/planner"
	"github.com/fltops/autopilot/internal/store"
)

func NewRouter(s store.Store, p *planner.Planner, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(120))

	pilots := NewPilotsHandler(s)
	trips := NewTripsHandler(s, p)
	bal := NewBalanceHandler(p)
	admin := NewAdminHandler(s, p)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(DispatcherIDMiddleware)

		r.Get("/pilots", pilots.List)
		r.Post("/pilots", pilots.Upsert)

		r.Post("/trips", trips.Create)
		r.Get("/trips", trips.List)
		r.Get("/trips/{id}", trips.Get)
		r.Get("/trips/{id}/recommendations", trips.Recommendations)
		r.Post("/trips/{id}/assign", trips.Assign)

		r.Post("/balance", bal.Run)

		r.Get("/assignments", admin.AssignmentHistory)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(adminToken))
			r.Get("/stats", admin.Stats)
			r.Post("/sync", admin.Sync)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
