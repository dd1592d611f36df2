package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clawback/clawback-service/internal/app"
	"github.com/clawback/clawback-service/internal/domain"
	"github.com/clawback/clawback-service/pkg/stripeclient"
)

type upgradeServiceStub struct {
	checkoutURL string
	checkoutErr error

	appliedSessions []stripeclient.CheckoutSession
	applyErr        error
}

func (s *upgradeServiceStub) CreateCheckout(ctx context.Context, clerkUserID string) (string, error) {
	if s.checkoutErr != nil {
		return "", s.checkoutErr
	}
	return s.checkoutURL, nil
}

func (s *upgradeServiceStub) ApplyCheckoutCompleted(ctx context.Context, session stripeclient.CheckoutSession) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.appliedSessions = append(s.appliedSessions, session)
	return nil
}

type sweepRunnerStub struct {
	result app.SweepResult
	err    error

	gotDryRun bool
	calls     int
}

func (s *sweepRunnerStub) Run(ctx context.Context, now time.Time, dryRun bool) (app.SweepResult, error) {
	s.calls++
	s.gotDryRun = dryRun
	if s.err != nil {
		return app.SweepResult{}, s.err
	}
	result := s.result
	result.DryRun = dryRun
	return result, nil
}

func newTestHandler(service UpgradeService, sweeper SweepRunner, cronSecret string) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(service, sweeper, nil, 5, "whsec_test", cronSecret, logger)
}

func TestHandleRunReminders_FailsClosedWithoutSecretConfigured(t *testing.T) {
	sweeper := &sweepRunnerStub{}
	h := newTestHandler(&upgradeServiceStub{}, sweeper, "")

	req := httptest.NewRequest(http.MethodGet, "/api/cron/reminders?secret=anything", nil)
	rec := httptest.NewRecorder()
	h.handleRunReminders(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when cron secret unset, got %d", rec.Code)
	}
	if sweeper.calls != 0 {
		t.Fatal("sweep must not run without a configured secret")
	}
}

func TestHandleRunReminders_RejectsWrongSecret(t *testing.T) {
	sweeper := &sweepRunnerStub{}
	h := newTestHandler(&upgradeServiceStub{}, sweeper, "s3cret")

	req := httptest.NewRequest(http.MethodGet, "/api/cron/reminders?secret=wrong", nil)
	rec := httptest.NewRecorder()
	h.handleRunReminders(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a wrong secret, got %d", rec.Code)
	}
	if sweeper.calls != 0 {
		t.Fatal("sweep must not run with a wrong secret")
	}
}

func TestHandleRunReminders_DryRunByDefault(t *testing.T) {
	sweeper := &sweepRunnerStub{
		result: app.SweepResult{Intents: []domain.NotificationIntent{
			{UserID: "u1", Channel: domain.ChannelEmail, StateKey: "test_card:travel", OffsetDays: 7},
		}},
	}
	h := newTestHandler(&upgradeServiceStub{}, sweeper, "s3cret")

	req := httptest.NewRequest(http.MethodGet, "/api/cron/reminders?secret=s3cret", nil)
	rec := httptest.NewRecorder()
	h.handleRunReminders(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !sweeper.gotDryRun {
		t.Fatal("expected dry-run to default to true")
	}

	var result app.SweepResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.DryRun || len(result.Intents) != 1 {
		t.Fatalf("expected a dry-run intent list, got %+v", result)
	}
}

func TestHandleRunReminders_CommitMode(t *testing.T) {
	sweeper := &sweepRunnerStub{result: app.SweepResult{Written: 3}}
	h := newTestHandler(&upgradeServiceStub{}, sweeper, "s3cret")

	req := httptest.NewRequest(http.MethodGet, "/api/cron/reminders?secret=s3cret&dry_run=false", nil)
	rec := httptest.NewRecorder()
	h.handleRunReminders(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if sweeper.gotDryRun {
		t.Fatal("expected commit mode when dry_run=false")
	}
	if !strings.Contains(rec.Body.String(), `"written":3`) {
		t.Fatalf("expected written count in response, got %s", rec.Body.String())
	}
}

func TestHandleRunReminders_SweepErrorIs500(t *testing.T) {
	sweeper := &sweepRunnerStub{err: errors.New("load profiles: db down")}
	h := newTestHandler(&upgradeServiceStub{}, sweeper, "s3cret")

	req := httptest.NewRequest(http.MethodGet, "/api/cron/reminders?secret=s3cret", nil)
	rec := httptest.NewRecorder()
	h.handleRunReminders(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on sweep failure, got %d", rec.Code)
	}
}

func TestHandleStripeWebhook_RejectsBadSignature(t *testing.T) {
	service := &upgradeServiceStub{}
	h := newTestHandler(service, &sweepRunnerStub{}, "s3cret")

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", "t=123,v1=deadbeef")
	rec := httptest.NewRecorder()
	h.handleStripeWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad signature, got %d", rec.Code)
	}
	if len(service.appliedSessions) != 0 {
		t.Fatal("no upgrade may be applied on a bad signature")
	}
}

func signedWebhookRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", stripeclient.SignPayload([]byte(payload), "whsec_test", time.Now()))
	return req
}

func TestHandleStripeWebhook_AppliesCompletedCheckout(t *testing.T) {
	service := &upgradeServiceStub{}
	h := newTestHandler(service, &sweepRunnerStub{}, "s3cret")

	payload := `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "customer": "cus_9", "metadata": {"clerk_user_id": "user_abc"}}}
	}`
	rec := httptest.NewRecorder()
	h.handleStripeWebhook(rec, signedWebhookRequest(t, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(service.appliedSessions) != 1 || service.appliedSessions[0].ID != "cs_1" {
		t.Fatalf("expected one applied session, got %+v", service.appliedSessions)
	}
}

func TestHandleStripeWebhook_MissingUserTagIs400(t *testing.T) {
	service := &upgradeServiceStub{applyErr: app.ErrMissingUserTag}
	h := newTestHandler(service, &sweepRunnerStub{}, "s3cret")

	payload := `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "metadata": {}}}
	}`
	rec := httptest.NewRecorder()
	h.handleStripeWebhook(rec, signedWebhookRequest(t, payload))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing user tag, got %d", rec.Code)
	}
}

func TestHandleStripeWebhook_StoreFailureIs500(t *testing.T) {
	service := &upgradeServiceStub{applyErr: errors.New("db down")}
	h := newTestHandler(service, &sweepRunnerStub{}, "s3cret")

	payload := `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "metadata": {"clerk_user_id": "user_abc"}}}
	}`
	rec := httptest.NewRecorder()
	h.handleStripeWebhook(rec, signedWebhookRequest(t, payload))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on store failure, got %d", rec.Code)
	}
}

func TestHandleStripeWebhook_IgnoredEventTypesAreAcknowledged(t *testing.T) {
	service := &upgradeServiceStub{}
	h := newTestHandler(service, &sweepRunnerStub{}, "s3cret")

	payload := `{"id": "evt_1", "type": "invoice.paid", "data": {"object": {}}}`
	rec := httptest.NewRecorder()
	h.handleStripeWebhook(rec, signedWebhookRequest(t, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for an ignored event type, got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("expected ok body, got %q", rec.Body.String())
	}
	if len(service.appliedSessions) != 0 {
		t.Fatal("ignored events must not change state")
	}
}

func TestHandleCreateCheckout_RequiresAuthenticatedUser(t *testing.T) {
	h := newTestHandler(&upgradeServiceStub{}, &sweepRunnerStub{}, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	rec := httptest.NewRecorder()
	h.handleCreateCheckout(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without an authenticated user, got %d", rec.Code)
	}
}

func TestHandleCreateCheckout_ReturnsRedirectURL(t *testing.T) {
	service := &upgradeServiceStub{checkoutURL: "https://checkout.stripe.com/c/pay/cs_1"}
	h := newTestHandler(service, &sweepRunnerStub{}, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	req = req.WithContext(WithClerkUserID(req.Context(), "user_abc"))
	rec := httptest.NewRecorder()
	h.handleCreateCheckout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["url"] != "https://checkout.stripe.com/c/pay/cs_1" {
		t.Fatalf("unexpected url %q", body["url"])
	}
}

func TestHandleCreateCheckout_DownstreamFailureIs500(t *testing.T) {
	service := &upgradeServiceStub{checkoutErr: errors.New("stripe unavailable")}
	h := newTestHandler(service, &sweepRunnerStub{}, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	req = req.WithContext(WithClerkUserID(req.Context(), "user_abc"))
	rec := httptest.NewRecorder()
	h.handleCreateCheckout(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on downstream failure, got %d", rec.Code)
	}
}
