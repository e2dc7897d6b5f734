package config

import (
	"github.com/raushankrgupta/fitly-shop-links/enrich"
	"github.com/raushankrgupta/fitly-shop-links/search"
)

// SearchOptions builds provider options from the loaded environment.
// mode overrides SEARCH_MODE when non-empty; the catalog endpoint always runs in catalog mode.
func SearchOptions(mode search.Mode) search.Options {
	if mode == "" {
		mode = search.ParseMode(SearchMode)
	}
	opts := search.Options{
		Endpoint:    SerpAPIEndpoint,
		APIKey:      SerpAPIKey,
		Engine:      ShoppingEngine,
		Region:      ShoppingRegion,
		Lang:        ShoppingLang,
		Location:    ShoppingLocation,
		Timeout:     SearchTimeout,
		MaxAttempts: SearchMaxAttempts,
		BackoffBase: SearchBackoffBase,
		ResultsHint: SearchResultsHint,
		MaxResults:  SearchMaxResults,
		Mode:        mode,
		RatePerSec:  SearchRatePerSec,
		Breaker:     SearchBreaker,
	}
	if mode == search.ModeCatalog && search.ParseMode(SearchMode) != search.ModeCatalog {
		// one-shot sizing does not apply to a catalog page
		opts.ResultsHint = 0
		opts.MaxResults = 6
	}
	return opts
}

// EnrichOptions keeps at most SEARCH_MAX_RESULTS links per item.
func EnrichOptions() enrich.Options {
	return enrich.Options{Concurrency: EnrichConcurrency, MaxLinks: SearchMaxResults}
}
