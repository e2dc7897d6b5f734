// Package inspect reads product pages to fill link fields the search backend left empty.
package inspect

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/raushankrgupta/fitly-shop-links/models"
	"github.com/raushankrgupta/fitly-shop-links/utils"
)

// Inspector fills image_url and in_stock from a product page. It never fails;
// anything it cannot read is left as it was.
type Inspector struct {
	fetcher *Fetcher
	logger  *utils.Logger
	timeout time.Duration
}

func New(fetcher *Fetcher, logger *utils.Logger) *Inspector {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Inspector{fetcher: fetcher, logger: logger.With("component", "inspect"), timeout: 45 * time.Second}
}

func (i *Inspector) Inspect(ctx context.Context, link models.ProductLink) models.ProductLink {
	if link.ImageURL != nil && link.InStock != nil {
		return link
	}
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	target, err := utils.ResolveRedirects(ctx, i.fetcher.Client, link.URL)
	if err != nil {
		target = link.URL
	}

	ready := isValidDocument
	m := merchantFor(target)
	if m != nil {
		ready = m.ready
	}
	doc, err := i.fetcher.FetchDocument(ctx, target, ready)
	if err != nil {
		i.logger.Debug("product page unavailable", "url", link.URL, "error", err)
		return link
	}

	if link.ImageURL == nil {
		img := ""
		if m != nil && m.image != nil {
			img = strings.TrimSpace(m.image(doc))
		}
		if img == "" {
			img, _ = imageFrom(doc)
		}
		if img != "" {
			img = absolute(target, img)
			link.ImageURL = &img
		}
	}
	if link.InStock == nil {
		if m != nil && m.inStock != nil {
			link.InStock = m.inStock(doc)
		}
		if link.InStock == nil {
			link.InStock = availabilityFrom(doc)
		}
	}
	return link
}

func imageFrom(doc *goquery.Document) (string, bool) {
	selectors := []struct{ sel, attr string }{
		{`meta[property="og:image"]`, "content"},
		{`meta[property="og:image:secure_url"]`, "content"},
		{`meta[name="twitter:image"]`, "content"},
		{`link[rel="image_src"]`, "href"},
		{`[itemprop="image"]`, "content"},
		{`[itemprop="image"]`, "src"},
	}
	for _, s := range selectors {
		if v, ok := doc.Find(s.sel).First().Attr(s.attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// availabilityFrom reads product:availability meta, schema.org microdata, then JSON-LD offers.
func availabilityFrom(doc *goquery.Document) *bool {
	candidates := []string{}
	for _, s := range []struct{ sel, attr string }{
		{`meta[property="product:availability"]`, "content"},
		{`meta[property="og:availability"]`, "content"},
		{`[itemprop="availability"]`, "href"},
		{`[itemprop="availability"]`, "content"},
	} {
		if v, ok := doc.Find(s.sel).First().Attr(s.attr); ok {
			candidates = append(candidates, v)
		}
	}
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		candidates = append(candidates, ldAvailability(sel.Text())...)
	})

	for _, c := range candidates {
		if v := parseAvailability(c); v != nil {
			return v
		}
	}
	return nil
}

func parseAvailability(raw string) *bool {
	s := strings.ToLower(raw)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)

	var v bool
	switch s {
	case "instock", "limitedavailability", "onlineonly", "instoreonly", "presale", "preorder":
		v = true
	case "outofstock", "soldout", "discontinued", "oos":
		v = false
	default:
		return nil
	}
	return &v
}

// ldAvailability digs offers.availability out of a JSON-LD block, which may hold
// one object, an array of them, or an @graph.
func ldAvailability(text string) []string {
	var root interface{}
	if err := json.Unmarshal([]byte(text), &root); err != nil {
		return nil
	}
	var out []string
	var walk func(v interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case []interface{}:
			for _, e := range t {
				walk(e)
			}
		case map[string]interface{}:
			if a, ok := t["availability"].(string); ok {
				out = append(out, a)
			}
			for _, key := range []string{"offers", "@graph"} {
				if child, ok := t[key]; ok {
					walk(child)
				}
			}
		}
	}
	walk(root)
	return out
}

func absolute(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
