/**
 * @description
 * This file defines the account upgrade state applied when a Stripe checkout
 * completes.
 */
package domain

import "time"

// UpgradeRecord captures the paid-tier upgrade applied to a user's account.
type UpgradeRecord struct {
	ClerkUserID       string    `json:"clerk_user_id"`
	UpgradedAt        time.Time `json:"upgraded_at"`
	StripeCustomerID  string    `json:"stripe_customer_id"`
	CheckoutSessionID string    `json:"checkout_session_id"`
}

// UserUpgradedEvent is published after an upgrade is applied.
type UserUpgradedEvent struct {
	ClerkUserID       string `json:"clerk_user_id"`
	CheckoutSessionID string `json:"checkout_session_id"`
}
