package search

import (
	"bytes"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/raushankrgupta/fitly-shop-links/models"
)

// first number in a display price, e.g. "₹1,990" or "AED 129.00"
var priceToken = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// Codes are checked before symbols so "AED 12" is not read through a later marker.
var currencyMarkers = []struct {
	marker string
	code   string
}{
	{"AED", "AED"},
	{"INR", "INR"},
	{"SAR", "SAR"},
	{"USD", "USD"},
	{"GBP", "GBP"},
	{"EUR", "EUR"},
	{"₹", "INR"},
	{"Rs", "INR"},
	{"$", "USD"},
	{"£", "GBP"},
	{"€", "EUR"},
}

// ParsePrice reads the first numeric token of a display price, ignoring thousands separators.
func ParsePrice(raw string) *float64 {
	m := priceToken.FindString(raw)
	if m == "" {
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return nil
	}
	f, _ := d.Float64()
	return &f
}

// GuessCurrency maps the first recognised symbol or code in raw to an ISO code.
func GuessCurrency(raw string) *string {
	if raw == "" {
		return nil
	}
	for _, cm := range currencyMarkers {
		if strings.Contains(raw, cm.marker) {
			code := cm.code
			return &code
		}
	}
	return nil
}

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	*s = looseString(b)
	return nil
}

// looseFloat accepts a JSON number or a numeric string.
type looseFloat struct {
	val *float64
}

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		f.val = ParsePrice(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.val = &v
	return nil
}

type shoppingResult struct {
	Title          string      `json:"title"`
	Link           string      `json:"link"`
	ProductLink    string      `json:"product_link"`
	SerpAPILink    string      `json:"serpapi_link"`
	Price          looseString `json:"price"`
	ExtractedPrice looseFloat  `json:"extracted_price"`
	Thumbnail      string      `json:"thumbnail"`
	Source         string      `json:"source"`
}

type searchResponse struct {
	SearchMetadata struct {
		Status string `json:"status"`
	} `json:"search_metadata"`
	ShoppingResults []shoppingResult `json:"shopping_results"`
	Error           string           `json:"error"`
}

// noResults reports the backend's "nothing found" reply, which is a legitimate empty result.
func (r searchResponse) noResults() bool {
	return r.Error != "" && strings.Contains(strings.ToLower(r.Error), "returned any results")
}

// toLink maps a raw result to a ProductLink. ok is false when no usable URL exists.
func (r shoppingResult) toLink(query string) (models.ProductLink, bool) {
	link := firstUsableURL(r.Link, r.ProductLink, r.SerpAPILink)
	if link == "" {
		return models.ProductLink{}, false
	}

	price := r.ExtractedPrice.val
	if price == nil {
		price = ParsePrice(string(r.Price))
	}

	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = query
	}
	source := strings.TrimSpace(r.Source)
	if source == "" {
		source = models.DefaultSource
	}

	pl := models.ProductLink{
		Title:    title,
		URL:      link,
		Price:    price,
		Currency: GuessCurrency(string(r.Price)),
		Source:   source,
	}
	if thumb := strings.TrimSpace(r.Thumbnail); thumb != "" {
		pl.ImageURL = &thumb
	}
	return pl, true
}

func firstUsableURL(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		u, err := url.Parse(c)
		if err != nil || u.Host == "" {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		return c
	}
	return ""
}
