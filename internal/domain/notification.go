/**
 * @description
 * This file defines the ephemeral notification intent produced by the
 * reminder sweep and the append-only log row it becomes in commit mode.
 */
package domain

import "time"

// Channel identifies a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// NotificationIntent is one reminder the sweep decided to send. Intents are
// derived fresh on every sweep and are only persisted in commit mode.
type NotificationIntent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Channel    Channel   `json:"channel"`
	StateKey   string    `json:"state_key"`
	DueDate    time.Time `json:"due_date"`
	OffsetDays int       `json:"offset_days"`
	Message    string    `json:"message"`
}

// ReminderDueEvent is the message published per committed intent so delivery
// workers can pick it up.
type ReminderDueEvent struct {
	IntentID   string  `json:"intent_id"`
	UserID     string  `json:"user_id"`
	Channel    Channel `json:"channel"`
	StateKey   string  `json:"state_key"`
	DueDate    string  `json:"due_date"`
	OffsetDays int     `json:"offset_days"`
	Message    string  `json:"message"`
}
