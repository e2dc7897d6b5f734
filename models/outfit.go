package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidOutfit is returned when an outfit card fails boundary validation.
var ErrInvalidOutfit = errors.New("invalid outfit")

// OutfitItem is one clothing piece inside an outfit card.
// Name seeds the product search, Brand refines it and Price drives the price band.
type OutfitItem struct {
	Name  string   `json:"name" bson:"name"`
	Brand string   `json:"brand,omitempty" bson:"brand,omitempty"`
	Price *float64 `json:"price,omitempty" bson:"price,omitempty"`
}

// OutfitCard is a generated outfit suggestion as handed to the enrichment pipeline.
type OutfitCard struct {
	ID          string       `json:"id" bson:"id" validate:"required"`
	Title       string       `json:"title" bson:"title"`
	Occasion    string       `json:"occasion,omitempty" bson:"occasion,omitempty"`
	Description string       `json:"description" bson:"description"`
	Confidence  int          `json:"confidence" bson:"confidence" validate:"gte=0,lte=100"`
	Color       string       `json:"color" bson:"color"`
	Items       []OutfitItem `json:"items" bson:"items"`
	MatchScore  int          `json:"match_score" bson:"match_score" validate:"gte=0,lte=100"`
}

// GenerationAnswers is the preference shape collected by the outfit suggestions page.
type GenerationAnswers struct {
	Occasion        string   `json:"occasion,omitempty"`
	Mood            string   `json:"mood,omitempty"`
	Colors          []string `json:"colors,omitempty"`
	StylePreference []string `json:"style_preference,omitempty"`
	Budget          string   `json:"budget,omitempty" validate:"omitempty,oneof=budget moderate premium no_limit"`
}

var validate = validator.New()

// NormalizeOutfits trims item fields, drops non-positive prices and clamps scores into 0..100.
// Only a blank or repeated outfit id rejects the batch. Items with blank names are kept so
// the orchestrator can report and skip them.
func NormalizeOutfits(cards []OutfitCard) ([]OutfitCard, error) {
	seen := make(map[string]bool, len(cards))
	out := make([]OutfitCard, 0, len(cards))
	for i, card := range cards {
		card.ID = strings.TrimSpace(card.ID)
		card.Confidence = ClampScore(card.Confidence)
		card.MatchScore = ClampScore(card.MatchScore)
		if err := validate.Struct(card); err != nil {
			return nil, fmt.Errorf("%w: outfit %d: %v", ErrInvalidOutfit, i, err)
		}
		if seen[card.ID] {
			return nil, fmt.Errorf("%w: duplicate outfit id %q", ErrInvalidOutfit, card.ID)
		}
		seen[card.ID] = true

		items := make([]OutfitItem, len(card.Items))
		for j, item := range card.Items {
			items[j] = item.normalized()
		}
		card.Items = items
		out = append(out, card)
	}
	return out, nil
}

// ClampScore bounds a percentage-style score to 0..100.
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ValidateAnswers checks the enumerated answer fields.
func ValidateAnswers(a GenerationAnswers) error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("invalid answers: %w", err)
	}
	return nil
}

func (it OutfitItem) normalized() OutfitItem {
	it.Name = strings.Join(strings.Fields(it.Name), " ")
	it.Brand = strings.Join(strings.Fields(it.Brand), " ")
	if it.Price != nil && *it.Price <= 0 {
		it.Price = nil
	}
	return it
}

// HasName reports whether the item carries a usable search seed.
func (it OutfitItem) HasName() bool {
	return strings.TrimSpace(it.Name) != ""
}
