/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the operator console

ROUTE GROUPS:
  /api/rules/*       Split rule registry
  /api/partners/*    Revenue, shares and payout creation per partner
  /api/payouts/*     Payout lifecycle and adjustments
  /api/audit         Audit trail
  /api/calculate     Stateless calculator
  /api/scenarios/*   Demo scenarios

SECURITY NOTE:
  No authentication middleware. The X-Actor-ID header is trusted for audit
  attribution only.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
// allowedOrigins configures CORS; nil allows any origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		AllowCredentials: false,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Rule routes
		r.Route("/rules", func(r chi.Router) {
			r.Post("/", h.CreateRule)
			r.Post("/{id}/deactivate", h.DeactivateRule)
		})

		// Partner routes
		r.Route("/partners/{id}", func(r chi.Router) {
			r.Get("/rules", h.ListRules)
			r.Post("/revenue", h.RecordRevenue)
			r.Get("/share", h.GetShare)
			r.Post("/payouts", h.CreatePayout)
		})

		// Payout routes
		r.Route("/payouts", func(r chi.Router) {
			r.Get("/", h.ListPayouts)
			r.Post("/process", h.ProcessPayouts)
			r.Get("/{id}", h.GetPayout)
			r.Post("/{id}/adjustments", h.AddAdjustment)
			r.Post("/{id}/transition", h.TransitionPayout)
		})

		r.Get("/audit", h.GetAudit)
		r.Post("/calculate", h.Calculate)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
