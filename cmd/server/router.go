package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/wanderplan/wanderplan-api/internal/api"
	"github.com/wanderplan/wanderplan-api/internal/api/middleware"
	"github.com/wanderplan/wanderplan-api/internal/api/shared"
	"github.com/wanderplan/wanderplan-api/internal/job"
	platformredis "github.com/wanderplan/wanderplan-api/internal/platform/redis"
	"github.com/wanderplan/wanderplan-api/internal/recommendation"
)

// newRouter assembles the chi router with all middleware and routes.
func newRouter(
	jobService *job.Service,
	recommendationService *recommendation.Service,
	statusCache platformredis.StatusCache,
	db *sql.DB,
	log *slog.Logger,
) http.Handler {
	jobHandler := api.NewJobHandler(jobService, log)
	recommendationHandler := api.NewRecommendationHandler(recommendationService, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", healthHandler(db, statusCache))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/trips/{tripID}/schedule", jobHandler.GenerateSchedule)
		r.Post("/trips/{tripID}/schedule/days/{day}/regenerate", jobHandler.RegenerateDay)

		r.Get("/jobs/{requestID}", jobHandler.GetStatus)
		r.Get("/jobs/{requestID}/result", jobHandler.GetResult)
		r.Post("/jobs/{requestID}/cancel", jobHandler.Cancel)
		r.Post("/jobs/{requestID}/retry", jobHandler.Retry)

		r.Post("/recommendations", recommendationHandler.Get)
		r.Delete("/recommendations/places/{placeID}", recommendationHandler.Invalidate)
	})

	return r
}

// healthHandler reports database and cache reachability. Redis being down
// only degrades status polling, so it is reported but not fatal.
func healthHandler(db *sql.DB, statusCache platformredis.StatusCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		health := map[string]string{"status": "ok", "database": "ok"}
		status := http.StatusOK

		if err := db.PingContext(ctx); err != nil {
			health["status"] = "degraded"
			health["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		}

		if statusCache != nil {
			health["redis"] = "ok"
			if err := statusCache.Ping(ctx); err != nil {
				health["redis"] = "unreachable"
			}
		}

		shared.RespondWithJSON(w, r, status, health)
	}
}
