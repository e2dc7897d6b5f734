package generator

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raushankrgupta/fitly-shop-links/models"
)

type catalogOutfit struct {
	title       string
	occasion    string
	description string
	confidence  int
	color       string
	items       []catalogItem
	styles      []string
	palette     []string
}

type catalogItem struct {
	name  string
	brand string
	price float64
}

// The curated set doubles as the deterministic fallback.
var catalog = []catalogOutfit{
	{
		title:       "Smart Professional",
		occasion:    "Work",
		description: "Perfect for office meetings with a confident, professional vibe.",
		confidence:  95,
		color:       "linear-gradient(135deg, #4F7FFF 0%, rgba(79, 127, 255, 0.8) 100%)",
		items: []catalogItem{
			{"Tailored blazer", "Theory", 450},
			{"Crisp button shirt", "Everlane", 120},
			{"Straight-leg trousers", "J.Crew", 180},
			{"Leather loafers", "Cole Haan", 260},
		},
		styles:  []string{"smart casual", "formal", "minimalist", "structured"},
		palette: []string{"navy", "white", "black", "grey"},
	},
	{
		title:       "Weekend Explorer",
		occasion:    "Casual",
		description: "Effortlessly stylish for weekend adventures and casual hangouts.",
		confidence:  88,
		color:       "linear-gradient(135deg, #F2546D 0%, rgba(242, 84, 109, 0.8) 100%)",
		items: []catalogItem{
			{"Soft knit sweater", "Uniqlo", 90},
			{"High-waisted jeans", "Levi's", 150},
			{"White sneakers", "Adidas", 200},
			{"Canvas tote bag", "Baggu", 60},
		},
		styles:  []string{"casual", "minimalist", "trendy", "relaxed"},
		palette: []string{"beige", "blue", "white", "cream"},
	},
	{
		title:       "Date Night Elegance",
		occasion:    "Date",
		description: "Make a lasting impression with this sophisticated yet approachable look.",
		confidence:  92,
		color:       "linear-gradient(135deg, #1A1A1A 0%, rgba(26, 26, 26, 0.9) 100%)",
		items: []catalogItem{
			{"Silk midi dress", "Reformation", 380},
			{"Delicate jewelry set", "Mejuri", 220},
			{"Block heel sandals", "Sam Edelman", 190},
			{"Clutch purse", "Mansur Gavriel", 350},
		},
		styles:  []string{"formal", "trendy", "minimalist", "flowy"},
		palette: []string{"black", "red", "gold", "burgundy"},
	},
	{
		title:       "Athletic Luxe",
		occasion:    "Gym",
		description: "High-performance meets high-style for your workout sessions.",
		confidence:  90,
		color:       "linear-gradient(135deg, #4F7FFF 0%, rgba(79, 127, 255, 0.6) 100%)",
		items: []catalogItem{
			{"Performance sports bra", "Lululemon", 160},
			{"High-waisted leggings", "Alo Yoga", 240},
			{"Lightweight jacket", "Nike", 280},
			{"Training shoes", "APL", 450},
		},
		styles:  []string{"sporty", "athletic", "fitted"},
		palette: []string{"black", "blue", "grey", "neon"},
	},
	{
		title:       "Creative Professional",
		occasion:    "Work",
		description: "Express your creativity while maintaining professional polish.",
		confidence:  87,
		color:       "linear-gradient(135deg, #F2546D 0%, rgba(242, 84, 109, 0.7) 100%)",
		items: []catalogItem{
			{"Oversized blazer", "Zara", 230},
			{"Graphic tee", "A.P.C.", 110},
			{"Wide-leg trousers", "COS", 190},
			{"Platform oxfords", "Dr. Martens", 300},
		},
		styles:  []string{"trendy", "smart casual", "bohemian", "oversized"},
		palette: []string{"pink", "black", "olive", "white"},
	},
	{
		title:       "Travel Ready",
		occasion:    "Travel",
		description: "Comfort meets style for long journeys and city exploration.",
		confidence:  85,
		color:       "linear-gradient(135deg, #1A1A1A 0%, rgba(26, 26, 26, 0.8) 100%)",
		items: []catalogItem{
			{"Merino wool cardigan", "Everlane", 170},
			{"Stretch travel pants", "Betabrand", 130},
			{"Comfortable sneakers", "Allbirds", 190},
			{"Convertible backpack", "Away", 240},
		},
		styles:  []string{"casual", "minimalist", "relaxed"},
		palette: []string{"grey", "navy", "beige", "black"},
	},
}

var occasionAliases = map[string]string{
	"work":    "Work",
	"office":  "Work",
	"casual":  "Casual",
	"weekend": "Casual",
	"daily":   "Casual",
	"date":    "Date",
	"evening": "Date",
	"party":   "Date",
	"gym":     "Gym",
	"workout": "Gym",
	"sport":   "Gym",
	"travel":  "Travel",
}

var budgetFactors = map[string]decimal.Decimal{
	"budget":   decimal.RequireFromString("0.5"),
	"moderate": decimal.NewFromInt(1),
	"premium":  decimal.RequireFromString("1.8"),
	"no_limit": decimal.RequireFromString("2.5"),
}

// Catalog scores the curated outfit set against the answers.
type Catalog struct {
	newID func() string
}

func NewCatalog() *Catalog {
	return &Catalog{newID: uuid.NewString}
}

func (c *Catalog) Generate(ctx context.Context, answers models.GenerationAnswers, count int) ([]models.OutfitCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	count = ClampCount(count)

	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, len(catalog))
	for i, o := range catalog {
		ranked[i] = scored{idx: i, score: matchScore(o, answers)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	factor, ok := budgetFactors[answers.Budget]
	if !ok {
		factor = decimal.NewFromInt(1)
	}

	out := make([]models.OutfitCard, 0, count)
	for _, r := range ranked[:count] {
		o := catalog[r.idx]
		card := models.OutfitCard{
			ID:          c.newID(),
			Title:       o.title,
			Occasion:    o.occasion,
			Description: o.description,
			Confidence:  o.confidence,
			Color:       o.color,
			MatchScore:  r.score,
			Items:       make([]models.OutfitItem, len(o.items)),
		}
		for j, it := range o.items {
			p, _ := decimal.NewFromFloat(it.price).Mul(factor).Round(0).Float64()
			card.Items[j] = models.OutfitItem{Name: it.name, Brand: it.brand, Price: &p}
		}
		out = append(out, card)
	}
	return out, nil
}

// matchScore starts at 50 and is capped at 100.
func matchScore(o catalogOutfit, a models.GenerationAnswers) int {
	score := 50

	if occ := strings.ToLower(strings.TrimSpace(a.Occasion)); occ != "" {
		for alias, target := range occasionAliases {
			if strings.Contains(occ, alias) && target == o.occasion {
				score += 20
				break
			}
		}
	}
	if overlaps(a.StylePreference, o.styles) {
		score += 15
	}
	if overlaps(a.Colors, o.palette) {
		score += 10
	}
	if strings.EqualFold(strings.TrimSpace(a.Mood), "confident") && o.confidence > 90 {
		score += 5
	}
	if score > 100 {
		score = 100
	}
	return score
}

func overlaps(wanted, have []string) bool {
	for _, w := range wanted {
		w = strings.ToLower(strings.TrimSpace(w))
		for _, h := range have {
			if w != "" && w == h {
				return true
			}
		}
	}
	return false
}
