/**
 * @description
 * This file contains the business logic for the paid-tier upgrade: creating a
 * Stripe checkout session tagged with the buyer's identity, and applying the
 * upgrade when the completed-checkout webhook arrives.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/clawback/clawback-service/internal/domain"
	"github.com/clawback/clawback-service/pkg/stripeclient"
)

// ErrMissingUserTag is returned when a completed checkout session carries no
// user identity in its metadata.
var ErrMissingUserTag = errors.New("checkout session has no clerk_user_id metadata")

// ErrNoCheckoutURL is returned when Stripe creates a session without a
// redirect URL.
var ErrNoCheckoutURL = errors.New("checkout session has no redirect url")

// metadataUserKey is the session metadata key carrying the buyer's identity
// through Stripe and back on the webhook.
const metadataUserKey = "clerk_user_id"

// UpgradeRepository defines the database operations the upgrade flow needs.
type UpgradeRepository interface {
	FindUserIDByClerkUserID(ctx context.Context, clerkUserID string) (string, error)
	ApplyUpgrade(ctx context.Context, rec domain.UpgradeRecord) (bool, error)
}

// CheckoutClient defines the Stripe operations the upgrade flow needs.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, params stripeclient.CheckoutSessionParams) (*stripeclient.CheckoutSession, error)
}

// CheckoutConfig carries the static checkout parameters from configuration.
type CheckoutConfig struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Service provides the upgrade business logic.
type Service struct {
	repo     UpgradeRepository
	checkout CheckoutClient
	producer EventPublisher
	cfg      CheckoutConfig
	logger   *slog.Logger
}

// NewService creates a new upgrade service. The producer may be nil.
func NewService(repo UpgradeRepository, checkout CheckoutClient, producer EventPublisher, cfg CheckoutConfig, logger *slog.Logger) Service {
	return Service{
		repo:     repo,
		checkout: checkout,
		producer: producer,
		cfg:      cfg,
		logger:   logger,
	}
}

// CreateCheckout creates a one-time payment checkout session for the user and
// returns the hosted redirect URL.
func (s Service) CreateCheckout(ctx context.Context, clerkUserID string) (string, error) {
	if clerkUserID == "" {
		return "", errors.New("user ID cannot be empty")
	}

	// Resolve the internal account first; checkout sessions are only created
	// for users the store knows about.
	internalUserID, err := s.repo.FindUserIDByClerkUserID(ctx, clerkUserID)
	if err != nil {
		s.logger.Error("failed to resolve internal user id", "clerk_user_id", clerkUserID, "error", err)
		return "", err
	}

	session, err := s.checkout.CreateCheckoutSession(ctx, stripeclient.CheckoutSessionParams{
		PriceID:    s.cfg.PriceID,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
		Metadata:   map[string]string{metadataUserKey: clerkUserID},
	})
	if err != nil {
		s.logger.Error("failed to create checkout session", "clerk_user_id", clerkUserID, "error", err)
		return "", err
	}
	if session.URL == "" {
		return "", ErrNoCheckoutURL
	}

	s.logger.Info("created checkout session", "user_id", internalUserID, "clerk_user_id", clerkUserID, "session_id", session.ID)
	return session.URL, nil
}

// ApplyCheckoutCompleted marks the buying user's account as upgraded. The
// store update is conditional on the checkout session ID, so Stripe
// redelivering the event cannot double-apply.
func (s Service) ApplyCheckoutCompleted(ctx context.Context, session stripeclient.CheckoutSession) error {
	clerkUserID := session.Metadata[metadataUserKey]
	if clerkUserID == "" {
		return ErrMissingUserTag
	}

	applied, err := s.repo.ApplyUpgrade(ctx, domain.UpgradeRecord{
		ClerkUserID:       clerkUserID,
		UpgradedAt:        time.Now(),
		StripeCustomerID:  session.Customer,
		CheckoutSessionID: session.ID,
	})
	if err != nil {
		s.logger.Error("failed to apply upgrade", "clerk_user_id", clerkUserID, "session_id", session.ID, "error", err)
		return err
	}
	if !applied {
		s.logger.Info("upgrade already applied, ignoring redelivery", "clerk_user_id", clerkUserID, "session_id", session.ID)
		return nil
	}

	s.logger.Info("applied account upgrade", "clerk_user_id", clerkUserID, "session_id", session.ID)

	if s.producer != nil {
		event := domain.UserUpgradedEvent{ClerkUserID: clerkUserID, CheckoutSessionID: session.ID}
		if err := s.producer.Publish(ctx, "user.upgraded", event); err != nil {
			s.logger.Error("failed to publish upgrade event", "clerk_user_id", clerkUserID, "error", err)
		}
	}
	return nil
}
