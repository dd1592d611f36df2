/**
 * @description
 * This package owns the static credit catalog: the single reference dataset
 * describing which statement credits exist on which cards and how often each
 * resets. The dataset is embedded in the binary so the API surface and the
 * reminder sweep always read the same version.
 */
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/clawback/clawback-service/internal/domain"
)

//go:embed credits.json
var embeddedCredits []byte

// Card is one catalog card with its credits.
type Card struct {
	Key     string                    `json:"key"`
	Name    string                    `json:"name"`
	Credits []domain.CreditDefinition `json:"credits"`
}

// Catalog is the parsed, validated credit catalog.
type Catalog struct {
	Version int
	cards   map[string]Card
}

type rawCatalog struct {
	Version int `json:"version"`
	Cards   []struct {
		Key     string `json:"key"`
		Name    string `json:"name"`
		Credits []struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Frequency string `json:"frequency"`
		} `json:"credits"`
	} `json:"cards"`
}

// Load parses the embedded catalog. It is called once at startup; a broken
// dataset is a build artifact problem and should stop the process.
func Load() (*Catalog, error) {
	return Parse(embeddedCredits)
}

// Parse builds a Catalog from raw JSON, validating every frequency string.
func Parse(data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse credit catalog: %w", err)
	}
	if len(raw.Cards) == 0 {
		return nil, fmt.Errorf("credit catalog has no cards")
	}

	cards := make(map[string]Card, len(raw.Cards))
	for _, rc := range raw.Cards {
		if rc.Key == "" {
			return nil, fmt.Errorf("credit catalog card with empty key")
		}
		if _, exists := cards[rc.Key]; exists {
			return nil, fmt.Errorf("duplicate card key %q in credit catalog", rc.Key)
		}

		card := Card{Key: rc.Key, Name: rc.Name}
		seen := make(map[string]bool, len(rc.Credits))
		for _, cr := range rc.Credits {
			freq, err := domain.ParseFrequency(cr.Frequency)
			if err != nil {
				return nil, fmt.Errorf("card %q credit %q: %w", rc.Key, cr.ID, err)
			}
			if seen[cr.ID] {
				return nil, fmt.Errorf("duplicate credit id %q on card %q", cr.ID, rc.Key)
			}
			seen[cr.ID] = true
			card.Credits = append(card.Credits, domain.CreditDefinition{
				CardKey:   rc.Key,
				CreditID:  cr.ID,
				Title:     cr.Title,
				Frequency: freq,
			})
		}
		cards[rc.Key] = card
	}

	return &Catalog{Version: raw.Version, cards: cards}, nil
}

// CreditsForCard returns the credits defined on a card. The second return is
// false for card keys the catalog does not know; callers are expected to skip
// those silently since catalog coverage evolves independently of user data.
func (c *Catalog) CreditsForCard(cardKey string) ([]domain.CreditDefinition, bool) {
	card, ok := c.cards[cardKey]
	if !ok {
		return nil, false
	}
	return card.Credits, true
}

// Cards returns every card in the catalog, for the API surface.
func (c *Catalog) Cards() []Card {
	out := make([]Card, 0, len(c.cards))
	for _, card := range c.cards {
		out = append(out, card)
	}
	return out
}
