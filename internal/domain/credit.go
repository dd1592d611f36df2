/**
 * @description
 * This file defines the credit catalog domain types: the set of supported
 * reset frequencies and the static definition of a trackable card credit.
 */
package domain

import "fmt"

// Frequency describes how often a statement credit resets.
type Frequency string

const (
	FrequencyMonthly     Frequency = "monthly"
	FrequencyQuarterly   Frequency = "quarterly"
	FrequencySemiannual  Frequency = "semiannual"
	FrequencyAnnual      Frequency = "annual"
	FrequencyEvery4Years Frequency = "every4y"
	FrequencyEvery5Years Frequency = "every5y"
	FrequencyOneTime     Frequency = "onetime"
)

// ParseFrequency validates a raw frequency string from the catalog.
func ParseFrequency(raw string) (Frequency, error) {
	switch Frequency(raw) {
	case FrequencyMonthly, FrequencyQuarterly, FrequencySemiannual, FrequencyAnnual,
		FrequencyEvery4Years, FrequencyEvery5Years, FrequencyOneTime:
		return Frequency(raw), nil
	}
	return "", fmt.Errorf("unknown credit frequency %q", raw)
}

// CreditDefinition is one entry of the static credit catalog. It is immutable
// reference data shared by the API and the reminder sweep, not user-owned.
type CreditDefinition struct {
	CardKey   string    `json:"card_key"`
	CreditID  string    `json:"credit_id"`
	Title     string    `json:"title"`
	Frequency Frequency `json:"frequency"`
}

// StateKey returns the composite key identifying one trackable credit for a
// user: card key plus credit id.
func (c CreditDefinition) StateKey() string {
	return NewStateKey(c.CardKey, c.CreditID)
}

// NewStateKey builds the composite identifier used by CreditState rows and
// notification log entries.
func NewStateKey(cardKey, creditID string) string {
	return cardKey + ":" + creditID
}
