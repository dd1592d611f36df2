/**
 * @description
 * This file defines the user-owned domain models read by the reminder sweep:
 * notification profiles, card assignments, and per-credit tracking state.
 * These records are mutated by the main application's UI; the sweep only
 * reads them.
 */
package domain

import "time"

// DefaultReminderOffsets is used when a profile has no offsets configured.
var DefaultReminderOffsets = []int{7, 1}

// Profile holds a user's notification channel preferences and reminder
// lead-time offsets.
type Profile struct {
	UserID          string `json:"user_id"`
	EmailEnabled    bool   `json:"email_enabled"`
	SMSEnabled      bool   `json:"sms_enabled"`
	SMSConsent      bool   `json:"sms_consent"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	ReminderOffsets []int  `json:"reminder_offsets"`
}

// Offsets returns the profile's configured lead-time offsets, falling back to
// the default set when none are configured.
func (p Profile) Offsets() []int {
	if len(p.ReminderOffsets) == 0 {
		return DefaultReminderOffsets
	}
	return p.ReminderOffsets
}

// Channels returns the notification channels this profile is eligible for.
// SMS requires the enabled flag, explicit consent, and a phone number on file.
func (p Profile) Channels() []Channel {
	var channels []Channel
	if p.EmailEnabled {
		channels = append(channels, ChannelEmail)
	}
	if p.SMSEnabled && p.SMSConsent && p.PhoneNumber != "" {
		channels = append(channels, ChannelSMS)
	}
	return channels
}

// CardAssignment links a user to a card in the catalog. The start date anchors
// all recurrence math for that user's instance of the card; a nil start date
// disables scheduling for the assignment.
type CardAssignment struct {
	UserID    string     `json:"user_id"`
	CardKey   string     `json:"card_key"`
	StartDate *time.Time `json:"start_date,omitempty"`
}

// CreditState tracks one user's relationship to one catalog credit.
// A reminder is only computed when Remind is set and neither Used nor
// DontCare is.
type CreditState struct {
	UserID   string `json:"user_id"`
	StateKey string `json:"state_key"`
	Used     bool   `json:"used"`
	DontCare bool   `json:"dont_care"`
	Remind   bool   `json:"remind"`
}

// Eligible reports whether this state qualifies for reminder scheduling.
func (s CreditState) Eligible() bool {
	return s.Remind && !s.Used && !s.DontCare
}
