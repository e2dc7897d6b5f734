// Package canonical normalises product URLs into dedup keys.
package canonical

import (
	"net/url"
	"strings"

	"github.com/raushankrgupta/fitly-shop-links/models"
)

// click-id and analytics parameters that never change which product a URL points at
var trackingParams = map[string]bool{
	"gclid":   true,
	"gclsrc":  true,
	"dclid":   true,
	"fbclid":  true,
	"msclkid": true,
	"yclid":   true,
	"ttclid":  true,
	"twclid":  true,
	"srsltid": true,
	"_ga":     true,
	"_gl":     true,
	"mc_cid":  true,
	"mc_eid":  true,
	"igshid":  true,
}

// IsTrackingParam reports whether a query key only carries attribution data.
func IsTrackingParam(key string) bool {
	key = strings.ToLower(key)
	return strings.HasPrefix(key, "utm_") || trackingParams[key]
}

// Canonicalize lower-cases rawURL, drops its fragment and removes tracking query
// parameters. Remaining parameters keep their original relative order.
func Canonicalize(rawURL string) string {
	s := strings.ToLower(strings.TrimSpace(rawURL))
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}

	base, query, hasQuery := strings.Cut(s, "?")
	if !hasQuery {
		return base
	}

	var kept []string
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if IsTrackingParam(key) {
			continue
		}
		kept = append(kept, pair)
	}
	if len(kept) == 0 {
		return base
	}
	return base + "?" + strings.Join(kept, "&")
}

// Dedupe keeps the first link seen for each canonical URL, up to limit links.
// A limit <= 0 means no cap. Links without a URL are dropped.
func Dedupe(links []models.ProductLink, limit int) []models.ProductLink {
	seen := make(map[string]bool, len(links))
	out := make([]models.ProductLink, 0, len(links))
	for _, l := range links {
		if limit > 0 && len(out) >= limit {
			break
		}
		key := Canonicalize(l.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}

// Contains reports whether candidate is already present in links by canonical URL.
func Contains(links []models.ProductLink, candidate string) bool {
	key := Canonicalize(candidate)
	for _, l := range links {
		if Canonicalize(l.URL) == key {
			return true
		}
	}
	return false
}
