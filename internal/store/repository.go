/**
 * @description
 * This file implements the data access layer for the ClawBack backend.
 * It contains all the SQL queries and logic for interacting with the hosted
 * Postgres database (Supabase). Profiles, card assignments and credit states
 * are owned and mutated by the web UI; this service only reads them and
 * appends to the notification log.
 */
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawback/clawback-service/internal/domain"
)

// ErrUserNotFound is returned when a Clerk user ID has no matching account row.
var ErrUserNotFound = errors.New("user not found")

// Repository handles database operations for the backend.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListProfiles loads every user's notification preferences and reminder
// offsets for a sweep snapshot.
func (r *Repository) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	query := `
        SELECT id, email_enabled, sms_enabled, sms_consent,
               COALESCE(phone_number, ''),
               COALESCE(reminder_offsets, '{}')
        FROM users
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		var offsets []int32
		if err := rows.Scan(&p.UserID, &p.EmailEnabled, &p.SMSEnabled, &p.SMSConsent, &p.PhoneNumber, &offsets); err != nil {
			return nil, err
		}
		for _, o := range offsets {
			p.ReminderOffsets = append(p.ReminderOffsets, int(o))
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// ListCardAssignments loads every user/card assignment. The start date is
// nullable; assignments without one are carried through and skipped by the
// sweep.
func (r *Repository) ListCardAssignments(ctx context.Context) ([]domain.CardAssignment, error) {
	query := `
        SELECT user_id, card_key, start_date
        FROM card_assignments
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []domain.CardAssignment
	for rows.Next() {
		var a domain.CardAssignment
		if err := rows.Scan(&a.UserID, &a.CardKey, &a.StartDate); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ListCreditStates loads every per-user credit tracking state.
func (r *Repository) ListCreditStates(ctx context.Context) ([]domain.CreditState, error) {
	query := `
        SELECT user_id, state_key, used, dont_care, remind
        FROM credit_states
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []domain.CreditState
	for rows.Next() {
		var s domain.CreditState
		if err := rows.Scan(&s.UserID, &s.StateKey, &s.Used, &s.DontCare, &s.Remind); err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// AppendNotification writes one intent to the append-only notification log.
// Each insert is independent; the log carries no uniqueness constraint, so
// repeated sweeps on the same day produce repeated rows.
func (r *Repository) AppendNotification(ctx context.Context, intent domain.NotificationIntent) error {
	query := `
        INSERT INTO notification_log (id, user_id, state_key, channel, due_date, offset_days, message, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
    `
	_, err := r.db.Exec(ctx, query,
		intent.ID,
		intent.UserID,
		intent.StateKey,
		string(intent.Channel),
		intent.DueDate,
		intent.OffsetDays,
		intent.Message,
	)
	return err
}

// FindUserIDByClerkUserID resolves the internal account UUID for a Clerk user.
func (r *Repository) FindUserIDByClerkUserID(ctx context.Context, clerkUserID string) (string, error) {
	var id string
	query := `SELECT id FROM users WHERE clerk_user_id = $1`
	err := r.db.QueryRow(ctx, query, clerkUserID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return id, nil
}

// ApplyUpgrade marks a user's account as upgraded. The update is conditional
// on the checkout session ID so a redelivered webhook for an already-applied
// session is a no-op; the boolean reports whether a row actually changed.
func (r *Repository) ApplyUpgrade(ctx context.Context, rec domain.UpgradeRecord) (bool, error) {
	query := `
        UPDATE users
        SET is_pro = TRUE,
            upgraded_at = $2,
            stripe_customer_id = $3,
            stripe_checkout_session_id = $4,
            updated_at = NOW()
        WHERE clerk_user_id = $1
          AND (stripe_checkout_session_id IS NULL OR stripe_checkout_session_id <> $4)
    `
	tag, err := r.db.Exec(ctx, query,
		rec.ClerkUserID,
		rec.UpgradedAt,
		rec.StripeCustomerID,
		rec.CheckoutSessionID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
