/**
 * @description
 * This file contains the HTTP handler functions for the ClawBack backend:
 * checkout session creation, the Stripe webhook, and the reminder sweep
 * trigger. Handlers parse incoming requests, call the service layer, and
 * write responses.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/clawback/clawback-service/internal/app"
	"github.com/clawback/clawback-service/pkg/stripeclient"
)

// webhookTolerance bounds how old a signed webhook timestamp may be.
const webhookTolerance = 5 * time.Minute

// UpgradeService defines the upgrade operations handlers need.
type UpgradeService interface {
	CreateCheckout(ctx context.Context, clerkUserID string) (string, error)
	ApplyCheckoutCompleted(ctx context.Context, session stripeclient.CheckoutSession) error
}

// SweepRunner defines the reminder sweep operation handlers need.
type SweepRunner interface {
	Run(ctx context.Context, now time.Time, dryRun bool) (app.SweepResult, error)
}

// RateLimiter defines the checkout rate limit check.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, subject string, limit int, window time.Duration) (int, int, error)
}

// Handler holds the application services that handlers interact with.
type Handler struct {
	service       UpgradeService
	sweeper       SweepRunner
	limiter       RateLimiter
	rateLimit     int
	webhookSecret string
	cronSecret    string
	logger        *slog.Logger
}

// NewHandler creates a new Handler. The limiter may be nil, which disables
// checkout rate limiting.
func NewHandler(service UpgradeService, sweeper SweepRunner, limiter RateLimiter, rateLimit int, webhookSecret, cronSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		service:       service,
		sweeper:       sweeper,
		limiter:       limiter,
		rateLimit:     rateLimit,
		webhookSecret: webhookSecret,
		cronSecret:    cronSecret,
		logger:        logger,
	}
}

// handleCreateCheckout handles the request to start a paid-tier checkout.
func (h *Handler) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetClerkUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if h.limiter != nil {
		count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), userID, h.rateLimit, time.Minute)
		if err != nil {
			// Rate limiting is advisory; a limiter outage must not block checkout.
			h.logger.Error("checkout rate limiter unavailable", "error", err)
		} else if count > h.rateLimit {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			http.Error(w, "Too many checkout attempts", http.StatusTooManyRequests)
			return
		}
	}

	url, err := h.service.CreateCheckout(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleStripeWebhook processes signed webhook events from Stripe.
func (h *Handler) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	// 1. Validate the signature before acting on anything in the payload.
	sigHeader := r.Header.Get("Stripe-Signature")
	if err := stripeclient.VerifySignature(body, sigHeader, h.webhookSecret, webhookTolerance, time.Now()); err != nil {
		h.logger.Warn("rejected webhook with invalid signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	// 2. Decode the event envelope.
	event, err := stripeclient.ParseEvent(body)
	if err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	// 3. Only completed checkouts change state; everything else is
	// acknowledged so Stripe stops retrying.
	if event.Type != "checkout.session.completed" {
		h.logger.Info("ignoring webhook event", "type", event.Type)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
		return
	}

	session, err := event.CheckoutSession()
	if err != nil {
		http.Error(w, "Invalid checkout session payload", http.StatusBadRequest)
		return
	}

	if err := h.service.ApplyCheckoutCompleted(r.Context(), session); err != nil {
		if errors.Is(err, app.ErrMissingUserTag) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleRunReminders triggers a reminder sweep. The endpoint is guarded by a
// shared secret and defaults to dry-run; commit mode must be asked for
// explicitly.
func (h *Handler) handleRunReminders(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		// Fail closed rather than run an unguarded job endpoint.
		http.Error(w, "Cron secret is not configured", http.StatusInternalServerError)
		return
	}
	if r.URL.Query().Get("secret") != h.cronSecret {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	dryRun := true
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "Invalid dry_run value", http.StatusBadRequest)
			return
		}
		dryRun = parsed
	}

	result, err := h.sweeper.Run(r.Context(), time.Now(), dryRun)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
