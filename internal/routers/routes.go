package routers

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"recruitai/interview/internal/handlers"
	"recruitai/interview/internal/metrics"
)

// SetupRoutes builds the service's HTTP surface: health and metrics for
// operators, session status for the front-end, and the two realtime
// channel endpoints.
func SetupRoutes(sessions *handlers.SessionHandler, ws *handlers.WSHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware("interview"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", sessions.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sessions/status", sessions.Status)
		r.Get("/sessions/{token}/status", sessions.Status)
	})

	r.Get("/ws/candidate", ws.Candidate)
	r.Get("/ws/manager", ws.Manager)

	return r
}
