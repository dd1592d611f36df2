package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/clawback/clawback-service/internal/domain"
	"github.com/clawback/clawback-service/pkg/stripeclient"
)

type upgradeRepoStub struct {
	applied   []domain.UpgradeRecord
	appliedOK bool
	applyErr  error
	findErr   error
}

func (s *upgradeRepoStub) FindUserIDByClerkUserID(ctx context.Context, clerkUserID string) (string, error) {
	if s.findErr != nil {
		return "", s.findErr
	}
	return "11111111-2222-3333-4444-555555555555", nil
}

func (s *upgradeRepoStub) ApplyUpgrade(ctx context.Context, rec domain.UpgradeRecord) (bool, error) {
	if s.applyErr != nil {
		return false, s.applyErr
	}
	s.applied = append(s.applied, rec)
	return s.appliedOK, nil
}

type checkoutClientStub struct {
	session *stripeclient.CheckoutSession
	err     error

	gotParams stripeclient.CheckoutSessionParams
}

func (s *checkoutClientStub) CreateCheckoutSession(ctx context.Context, params stripeclient.CheckoutSessionParams) (*stripeclient.CheckoutSession, error) {
	s.gotParams = params
	return s.session, s.err
}

func newTestService(repo UpgradeRepository, checkout CheckoutClient, producer EventPublisher) Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := CheckoutConfig{
		PriceID:    "price_123",
		SuccessURL: "https://clawback.app/upgrade/success",
		CancelURL:  "https://clawback.app/upgrade/cancel",
	}
	return NewService(repo, checkout, producer, cfg, logger)
}

func TestCreateCheckout_TagsSessionWithUser(t *testing.T) {
	checkout := &checkoutClientStub{
		session: &stripeclient.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"},
	}
	service := newTestService(&upgradeRepoStub{}, checkout, nil)

	url, err := service.CreateCheckout(context.Background(), "user_abc")
	if err != nil {
		t.Fatalf("CreateCheckout returned error: %v", err)
	}
	if url != "https://checkout.stripe.com/c/pay/cs_1" {
		t.Fatalf("unexpected url %q", url)
	}
	if checkout.gotParams.Metadata["clerk_user_id"] != "user_abc" {
		t.Fatalf("expected session tagged with the user, got %v", checkout.gotParams.Metadata)
	}
}

func TestCreateCheckout_UnknownUserSurfaces(t *testing.T) {
	repo := &upgradeRepoStub{findErr: errors.New("user not found")}
	service := newTestService(repo, &checkoutClientStub{}, nil)

	if _, err := service.CreateCheckout(context.Background(), "user_ghost"); err == nil {
		t.Fatal("expected unknown user to surface as an error")
	}
}

func TestCreateCheckout_FailsWithoutRedirectURL(t *testing.T) {
	checkout := &checkoutClientStub{session: &stripeclient.CheckoutSession{ID: "cs_1"}}
	service := newTestService(&upgradeRepoStub{}, checkout, nil)

	_, err := service.CreateCheckout(context.Background(), "user_abc")
	if !errors.Is(err, ErrNoCheckoutURL) {
		t.Fatalf("expected ErrNoCheckoutURL, got %v", err)
	}
}

func TestApplyCheckoutCompleted_MissingUserTag(t *testing.T) {
	service := newTestService(&upgradeRepoStub{}, &checkoutClientStub{}, nil)

	err := service.ApplyCheckoutCompleted(context.Background(), stripeclient.CheckoutSession{
		ID:       "cs_1",
		Metadata: map[string]string{},
	})
	if !errors.Is(err, ErrMissingUserTag) {
		t.Fatalf("expected ErrMissingUserTag, got %v", err)
	}
}

func TestApplyCheckoutCompleted_AppliesUpgradeAndPublishes(t *testing.T) {
	repo := &upgradeRepoStub{appliedOK: true}
	producer := &publisherStub{}
	service := newTestService(repo, &checkoutClientStub{}, producer)

	err := service.ApplyCheckoutCompleted(context.Background(), stripeclient.CheckoutSession{
		ID:       "cs_1",
		Customer: "cus_9",
		Metadata: map[string]string{"clerk_user_id": "user_abc"},
	})
	if err != nil {
		t.Fatalf("ApplyCheckoutCompleted returned error: %v", err)
	}
	if len(repo.applied) != 1 {
		t.Fatalf("expected one upgrade, got %d", len(repo.applied))
	}
	rec := repo.applied[0]
	if rec.ClerkUserID != "user_abc" || rec.CheckoutSessionID != "cs_1" || rec.StripeCustomerID != "cus_9" {
		t.Fatalf("unexpected upgrade record %+v", rec)
	}
	if len(producer.published) != 1 || producer.published[0] != "user.upgraded" {
		t.Fatalf("expected one user.upgraded publish, got %v", producer.published)
	}
}

func TestApplyCheckoutCompleted_RedeliveryIsNoOp(t *testing.T) {
	// appliedOK=false models the conditional update matching zero rows
	// because the session was already applied.
	repo := &upgradeRepoStub{appliedOK: false}
	producer := &publisherStub{}
	service := newTestService(repo, &checkoutClientStub{}, producer)

	err := service.ApplyCheckoutCompleted(context.Background(), stripeclient.CheckoutSession{
		ID:       "cs_1",
		Metadata: map[string]string{"clerk_user_id": "user_abc"},
	})
	if err != nil {
		t.Fatalf("expected redelivery to succeed quietly, got %v", err)
	}
	if len(producer.published) != 0 {
		t.Fatalf("expected no event on redelivery, got %v", producer.published)
	}
}

func TestApplyCheckoutCompleted_StoreFailureSurfaces(t *testing.T) {
	repo := &upgradeRepoStub{applyErr: errors.New("db down")}
	service := newTestService(repo, &checkoutClientStub{}, nil)

	err := service.ApplyCheckoutCompleted(context.Background(), stripeclient.CheckoutSession{
		ID:       "cs_1",
		Metadata: map[string]string{"clerk_user_id": "user_abc"},
	})
	if err == nil {
		t.Fatal("expected store failure to surface")
	}
}
