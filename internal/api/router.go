/**
 * @description
 * This file sets up the HTTP router for the ClawBack backend using the
 * go-chi/chi router. It defines the API routes, applies middleware for
 * logging, CORS, and authentication, and maps the routes to their
 * corresponding handler functions.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the backend routes.
func NewRouter(h *Handler, authCfg AuthConfig) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ClawBack backend is healthy"))
	})

	// Webhooks authenticate by signature, not bearer token.
	r.Post("/webhooks/stripe", h.handleStripeWebhook)

	// The sweep trigger authenticates by shared secret query parameter.
	r.Get("/api/cron/reminders", h.handleRunReminders)

	// Protected routes that require a Clerk session.
	r.Group(func(r chi.Router) {
		r.Use(ClerkAuthMiddleware(authCfg))

		r.Post("/api/checkout", h.handleCreateCheckout)
	})

	return r
}
