/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       The widget frontend runs on its own dev origin

ROUTE GROUPS:
  /api/summary      Weekly hours and earnings
  /api/approvals/*  Manager approval queue and actions
  /api/cycle/*      Manual cycle control
  /api/health       Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/hourglass/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8990"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", h.GetSummary)

		r.Route("/approvals", func(r chi.Router) {
			r.Get("/", h.GetApprovals)
			r.Post("/approve", h.ApproveItem)
			r.Post("/reject", h.RejectItem)
		})

		r.Route("/cycle", func(r chi.Router) {
			r.Post("/run", h.RunCycle)
		})

		r.Get("/health", h.Health)
	})

	return r
}
