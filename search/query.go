package search

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	parenNote  = regexp.MustCompile(`\(.*?\)`)
	whitespace = regexp.MustCompile(`\s+`)

	bandLow  = decimal.RequireFromString("0.6")
	bandHigh = decimal.RequireFromString("1.4")
)

// PriceBand bounds results around a known target price, in whole currency units.
type PriceBand struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// BandFor derives the ±40% band for an item price. Absent or non-positive prices yield nil.
func BandFor(price *float64) *PriceBand {
	if price == nil || *price <= 0 {
		return nil
	}
	p := decimal.NewFromFloat(*price)
	return &PriceBand{
		Min: int(p.Mul(bandLow).Floor().IntPart()),
		Max: int(p.Mul(bandHigh).Ceil().IntPart()),
	}
}

// Contains reports whether price sits inside the band. Unknown prices pass.
func (b *PriceBand) Contains(price *float64) bool {
	if b == nil || price == nil {
		return true
	}
	return *price >= float64(b.Min) && *price <= float64(b.Max)
}

// BuildQuery puts the brand in front of the item name when one is known.
func BuildQuery(brand, name string) string {
	brand = strings.TrimSpace(brand)
	name = strings.TrimSpace(name)
	if brand == "" {
		return name
	}
	return strings.TrimSpace(brand + " " + name)
}

// SanitizeQuery drops parenthetical notes such as "(Namshi)", spells out "&" and
// collapses whitespace so the query survives parameter encoding on the backend.
func SanitizeQuery(q string) string {
	q = parenNote.ReplaceAllString(q, " ")
	q = strings.ReplaceAll(q, "&", " and ")
	return strings.TrimSpace(whitespace.ReplaceAllString(q, " "))
}
