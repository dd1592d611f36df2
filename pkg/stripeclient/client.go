/**
 * @description
 * This package provides a client for the parts of the Stripe API that
 * ClawBack uses: creating one-time Checkout Sessions and verifying/parsing
 * webhook events. It encapsulates authenticated, form-encoded HTTP requests
 * to Stripe's endpoints and the signed-webhook scheme.
 *
 * @dependencies
 * - context, crypto/hmac, crypto/sha256, net/http, net/url: Standard Go libraries.
 */
package stripeclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.stripe.com"

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Client is a client for the Stripe API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Stripe API client.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckoutSessionParams describes the one-time payment session to create.
type CheckoutSessionParams struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
	// Metadata is attached to the session and echoed back on webhook events.
	Metadata map[string]string
}

// CheckoutSession is the subset of Stripe's Checkout Session object the
// service reads.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Customer      string            `json:"customer"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

// Event is the envelope of a Stripe webhook event.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ErrorResponse represents an error returned by the Stripe API.
type ErrorResponse struct {
	Err struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *ErrorResponse) Error() string {
	if e.Err.Message != "" {
		return fmt.Sprintf("stripe api error: %s - %s", e.Err.Type, e.Err.Message)
	}
	return "unknown stripe api error"
}

// CreateCheckoutSession creates a one-time payment Checkout Session and
// returns it, including the hosted redirect URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Err.Message != "" {
			return nil, &apiErr
		}
		return nil, fmt.Errorf("stripe api returned status %d: %s", resp.StatusCode, string(body))
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	return &session, nil
}

// VerifySignature checks a Stripe-Signature header against the payload using
// the webhook signing secret. The header carries a unix timestamp and one or
// more "v1" HMAC-SHA256 signatures over "<timestamp>.<payload>"; any valid v1
// signature within the tolerance window passes.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	var timestamp string
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	age := now.Sub(time.Unix(ts, 0))
	if age < -tolerance || age > tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignPayload produces a Stripe-Signature header value for a payload. Used by
// tests and local tooling to fabricate verifiable webhook requests.
func SignPayload(payload []byte, secret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

// ParseEvent decodes a webhook payload into an event envelope.
func ParseEvent(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("failed to decode stripe event: %w", err)
	}
	return event, nil
}

// CheckoutSession extracts the checkout session object from a
// "checkout.session.completed" event.
func (e Event) CheckoutSession() (CheckoutSession, error) {
	var session CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return CheckoutSession{}, fmt.Errorf("failed to decode checkout session from event: %w", err)
	}
	return session, nil
}
