package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/raushankrgupta/fitly-shop-links/models"
)

// contentModel is the slice of *genai.GenerativeModel the generator uses.
type contentModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini asks a Gemini model for outfit cards as JSON.
type Gemini struct {
	client *genai.Client
	model  contentModel
	newID  func() string
}

func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.7)
	return &Gemini{client: client, model: model, newID: uuid.NewString}, nil
}

func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *Gemini) Generate(ctx context.Context, answers models.GenerationAnswers, count int) ([]models.OutfitCard, error) {
	count = ClampCount(count)
	resp, err := g.model.GenerateContent(ctx, genai.Text(buildPrompt(answers, count)))
	if err != nil {
		return nil, fmt.Errorf("failed to generate outfits: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: no candidates", ErrUnusableOutput)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return g.parse(text.String(), count)
}

type generatedOutfit struct {
	Title       string `json:"title"`
	Occasion    string `json:"occasion"`
	Description string `json:"description"`
	Confidence  int    `json:"confidence"`
	Color       string `json:"color"`
	MatchScore  int    `json:"match_score"`
	Items       []struct {
		Name  string   `json:"name"`
		Brand string   `json:"brand"`
		Price *float64 `json:"price"`
	} `json:"items"`
}

// parse accepts a bare array or an {"outfits": [...]} object, optionally fenced.
func (g *Gemini) parse(text string, count int) ([]models.OutfitCard, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raw []generatedOutfit
	if strings.HasPrefix(text, "{") {
		var wrapped struct {
			Outfits []generatedOutfit `json:"outfits"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnusableOutput, err)
		}
		raw = wrapped.Outfits
	} else if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnusableOutput, err)
	}

	if len(raw) > count {
		raw = raw[:count]
	}
	cards := make([]models.OutfitCard, 0, len(raw))
	for _, r := range raw {
		card := models.OutfitCard{
			ID:          g.newID(),
			Title:       r.Title,
			Occasion:    r.Occasion,
			Description: r.Description,
			Confidence:  models.ClampScore(r.Confidence),
			Color:       r.Color,
			MatchScore:  models.ClampScore(r.MatchScore),
		}
		for _, it := range r.Items {
			card.Items = append(card.Items, models.OutfitItem{Name: it.Name, Brand: it.Brand, Price: it.Price})
		}
		cards = append(cards, card)
	}
	return usable(cards)
}

func buildPrompt(a models.GenerationAnswers, count int) string {
	return fmt.Sprintf(`
You are a fashion stylist. Suggest %d complete outfits for this person.

Occasion: %s
Mood: %s
Favourite colours: %s
Style preference: %s
Budget: %s

Reply with JSON only: an array of objects with the fields
"title", "occasion", "description", "confidence" (0-100), "color" (a CSS gradient),
"match_score" (0-100) and "items". Each item has "name" (a searchable product name),
"brand" and "price" (a positive number in AED).
`, count, orAny(a.Occasion), orAny(a.Mood), orAnyList(a.Colors), orAnyList(a.StylePreference), orAny(a.Budget))
}

func orAny(s string) string {
	if strings.TrimSpace(s) == "" {
		return "any"
	}
	return s
}

func orAnyList(s []string) string {
	return orAny(strings.Join(s, ", "))
}
