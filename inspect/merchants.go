package inspect

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// merchant holds page rules for storefronts whose product pages render the
// interesting parts outside the generic meta tags.
type merchant struct {
	name  string
	hosts []string
	// ready reports whether the fetched page is the product page and not a shell or a bot wall.
	ready   func(*goquery.Document) bool
	image   func(*goquery.Document) string
	inStock func(*goquery.Document) *bool
}

var merchants = []merchant{
	{
		name:  "amazon",
		hosts: []string{"amazon.", "amzn."},
		ready: func(doc *goquery.Document) bool {
			return strings.TrimSpace(doc.Find("#productTitle").Text()) != ""
		},
		image:   amazonImage,
		inStock: textAvailability("#availability", []string{"in stock", "left in stock"}, []string{"currently unavailable", "out of stock"}),
	},
	{
		name:  "flipkart",
		hosts: []string{"flipkart.com"},
		ready: func(doc *goquery.Document) bool {
			return doc.Find("h1").Length() > 0 || doc.Find(".B_NuCI").Length() > 0
		},
		image: func(doc *goquery.Document) string {
			if src := doc.Find("ul._3GnUWp li._20Gt85 img").First().AttrOr("src", ""); src != "" {
				return strings.Replace(src, "/128/128/", "/832/832/", 1)
			}
			return doc.Find("img._396cs4").First().AttrOr("src", "")
		},
		inStock: textAvailability("body", nil, []string{"sold out", "currently unavailable"}),
	},
	{
		name:  "myntra",
		hosts: []string{"myntra.com"},
		ready: func(doc *goquery.Document) bool {
			return strings.Contains(doc.Text(), "window.__myx") || doc.Find("h1").Length() > 0
		},
		image:   myntraImage,
		inStock: myntraInStock,
	},
	{
		name:  "tatacliq",
		hosts: []string{"tatacliq.com"},
		ready: func(doc *goquery.Document) bool {
			return doc.Find(".ProductDescriptionPage__productName").Length() > 0 ||
				doc.Find(".ProductDetailsMainCard__productName").Length() > 0
		},
		image: func(doc *goquery.Document) string {
			return doc.Find("img.ImageGallery__image").First().AttrOr("src", "")
		},
	},
	{
		name:  "peterengland",
		hosts: []string{"peterengland"},
		ready: func(doc *goquery.Document) bool {
			return doc.Find("h1.pdp-title").Length() > 0 || doc.Find(".ProductDetails__productName").Length() > 0
		},
		image: func(doc *goquery.Document) string {
			if src := doc.Find(".Start-image-gallery img").First().AttrOr("src", ""); src != "" {
				return src
			}
			return doc.Find(".slick-track img").First().AttrOr("src", "")
		},
	},
}

// merchantFor matches on the host only, so tracking parameters never select a rule.
func merchantFor(rawURL string) *merchant {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	for i := range merchants {
		for _, h := range merchants[i].hosts {
			if strings.Contains(host, h) {
				return &merchants[i]
			}
		}
	}
	return nil
}

var amazonSizeSuffix = regexp.MustCompile(`\._.+_\.`)

func amazonImage(doc *goquery.Document) string {
	landing := doc.Find("#landingImage")
	if hi := landing.AttrOr("data-old-hires", ""); hi != "" {
		return hi
	}
	for _, sel := range []string{"#landingImage", "#imgBlkFront"} {
		raw := doc.Find(sel).AttrOr("data-a-dynamic-image", "")
		if raw == "" {
			continue
		}
		var images map[string][]int
		if err := json.Unmarshal([]byte(raw), &images); err != nil {
			continue
		}
		// keys are URLs, values the [width, height] of each rendition
		best, area := "", 0
		for u, dim := range images {
			if len(dim) == 2 && dim[0]*dim[1] > area {
				best, area = u, dim[0]*dim[1]
			}
		}
		if best != "" {
			return best
		}
	}
	if src := landing.AttrOr("src", ""); src != "" {
		return amazonSizeSuffix.ReplaceAllString(src, ".")
	}
	return ""
}

// myntraState returns pdpData from the window.__myx bootstrap script.
func myntraState(doc *goquery.Document) map[string]interface{} {
	var pdp map[string]interface{}
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		i := strings.Index(text, "window.__myx =")
		if i < 0 {
			return true
		}
		raw := strings.TrimSuffix(strings.TrimSpace(text[i+len("window.__myx ="):]), ";")
		var state map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &state); err == nil {
			pdp, _ = state["pdpData"].(map[string]interface{})
		}
		return false
	})
	return pdp
}

func myntraImage(doc *goquery.Document) string {
	pdp := myntraState(doc)
	media, _ := pdp["media"].(map[string]interface{})
	albums, _ := media["albums"].([]interface{})
	for _, album := range albums {
		a, _ := album.(map[string]interface{})
		images, _ := a["images"].([]interface{})
		for _, img := range images {
			m, _ := img.(map[string]interface{})
			if src, _ := m["src"].(string); src != "" {
				return src
			}
		}
	}
	return ""
}

func myntraInStock(doc *goquery.Document) *bool {
	pdp := myntraState(doc)
	flags, _ := pdp["flags"].(map[string]interface{})
	oos, ok := flags["outOfStock"].(bool)
	if !ok {
		return nil
	}
	v := !oos
	return &v
}

// textAvailability classifies the text under sel. Phrases are matched lower case;
// out-of-stock phrases win.
func textAvailability(sel string, inPhrases, outPhrases []string) func(*goquery.Document) *bool {
	return func(doc *goquery.Document) *bool {
		text := strings.ToLower(strings.Join(strings.Fields(doc.Find(sel).First().Text()), " "))
		if text == "" {
			return nil
		}
		for _, p := range outPhrases {
			if strings.Contains(text, p) {
				v := false
				return &v
			}
		}
		for _, p := range inPhrases {
			if strings.Contains(text, p) {
				v := true
				return &v
			}
		}
		return nil
	}
}
