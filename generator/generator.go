// Package generator produces outfit cards from style answers.
package generator

import (
	"context"
	"errors"

	"github.com/raushankrgupta/fitly-shop-links/models"
	"github.com/raushankrgupta/fitly-shop-links/utils"
)

// ErrUnusableOutput means the generator answered with something that is not a usable outfit list.
var ErrUnusableOutput = errors.New("generator returned unusable outfits")

const (
	DefaultCount = 3
	MaxCount     = 6
)

type Generator interface {
	Generate(ctx context.Context, answers models.GenerationAnswers, count int) ([]models.OutfitCard, error)
}

// ClampCount keeps count within 1..MaxCount, defaulting zero to DefaultCount.
func ClampCount(count int) int {
	switch {
	case count == 0:
		return DefaultCount
	case count < 1:
		return 1
	case count > MaxCount:
		return MaxCount
	}
	return count
}

// Fallback serves from Secondary whenever Primary fails.
type Fallback struct {
	Primary   Generator
	Secondary Generator
	Logger    *utils.Logger
}

func (f *Fallback) Generate(ctx context.Context, answers models.GenerationAnswers, count int) ([]models.OutfitCard, error) {
	if f.Primary != nil {
		outfits, err := f.Primary.Generate(ctx, answers, count)
		if err == nil {
			return outfits, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if f.Logger != nil {
			f.Logger.Warn("outfit generation failed, using catalog", "error", err)
		}
	}
	return f.Secondary.Generate(ctx, answers, count)
}

// usable validates generated cards. Every card needs at least one named item.
func usable(cards []models.OutfitCard) ([]models.OutfitCard, error) {
	if len(cards) == 0 {
		return nil, ErrUnusableOutput
	}
	cards, err := models.NormalizeOutfits(cards)
	if err != nil {
		return nil, errors.Join(ErrUnusableOutput, err)
	}
	for _, c := range cards {
		if len(c.Items) == 0 {
			return nil, ErrUnusableOutput
		}
		for _, it := range c.Items {
			if !it.HasName() {
				return nil, ErrUnusableOutput
			}
		}
	}
	return cards, nil
}
