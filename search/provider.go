package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/raushankrgupta/fitly-shop-links/canonical"
	"github.com/raushankrgupta/fitly-shop-links/metrics"
	"github.com/raushankrgupta/fitly-shop-links/models"
	"github.com/raushankrgupta/fitly-shop-links/utils"
)

type Mode string

const (
	// ModeOneShot returns the first valid result only.
	ModeOneShot Mode = "one-shot"
	// ModeCatalog returns up to MaxResults results deduplicated by URL.
	ModeCatalog Mode = "catalog"

	catalogCap = 6
)

// ParseMode falls back to one-shot for unknown values.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeCatalog {
		return ModeCatalog
	}
	return ModeOneShot
}

// Provider searches the shopping backend for one item.
type Provider interface {
	Search(ctx context.Context, query string, band *PriceBand) ([]models.ProductLink, error)
}

type Options struct {
	Endpoint string
	APIKey   string
	Engine   string
	Region   string
	Lang     string
	Location string

	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	ResultsHint int
	MaxResults  int
	Mode        Mode

	// RatePerSec <= 0 disables outbound rate limiting.
	RatePerSec float64
	Breaker    bool
}

func (o Options) withDefaults() Options {
	if o.Endpoint == "" {
		o.Endpoint = "https://serpapi.com/search.json"
	}
	if o.Engine == "" {
		o.Engine = "google_shopping"
	}
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Mode == "" {
		o.Mode = ModeOneShot
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 1
	}
	if o.Mode == ModeCatalog && o.MaxResults > catalogCap {
		o.MaxResults = catalogCap
	}
	if o.ResultsHint <= 0 {
		o.ResultsHint = 1
		if o.Mode == ModeCatalog {
			o.ResultsHint = 10
		}
	}
	return o
}

// SerpAPIProvider queries a SerpAPI-compatible google_shopping endpoint.
type SerpAPIProvider struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cache   Cache
	logger  *utils.Logger
	metrics *metrics.Metrics

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSerpAPIProvider builds a provider. client, cache, logger and m may be nil.
func NewSerpAPIProvider(opts Options, client *http.Client, cache Cache, logger *utils.Logger, m *metrics.Metrics) *SerpAPIProvider {
	opts = opts.withDefaults()
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = utils.NopLogger()
	}

	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}

	p := &SerpAPIProvider{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		cache:   cache,
		logger:  logger.With("component", "serpapi"),
		metrics: m,
		sleep:   sleepCtx,
	}
	if opts.Breaker {
		p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "serpapi",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				// a rejected band or a caller giving up says nothing about backend health
				var se *StatusError
				if errors.As(err, &se) && se.Code == http.StatusBadRequest {
					return true
				}
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				p.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return p
}

func (p *SerpAPIProvider) Mode() Mode {
	return p.opts.Mode
}

// Search runs the sanitised query with retries and returns normalised links.
// Persistent failure yields an *UnavailableError; a cancelled ctx yields ctx.Err().
func (p *SerpAPIProvider) Search(ctx context.Context, query string, band *PriceBand) ([]models.ProductLink, error) {
	q := SanitizeQuery(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	start := time.Now()

	key := cacheKey(p.opts.Mode, q, band)
	if p.cache != nil {
		links, ok, err := p.cache.Get(ctx, key)
		if err != nil {
			p.logger.Warn("search cache read failed", "query", q, "error", err)
		} else if ok {
			p.metrics.SearchDone("cached", time.Since(start))
			return links, nil
		}
	}

	state := newRetryState(p.opts.MaxAttempts, p.opts.BackoffBase, band != nil)
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reqBand *PriceBand
		if state.usePriceFilters() {
			reqBand = band
		}
		resp, err := p.call(ctx, q, reqBand)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		o := classify(err)
		p.metrics.Attempt(o.String())
		if !state.record(o, err) {
			if o == outcomeOK {
				links := p.shape(resp, q, band)
				p.storeCache(ctx, key, links)
				outcome := "ok"
				if len(links) == 0 {
					outcome = "empty"
				}
				p.metrics.SearchDone(outcome, time.Since(start))
				return links, nil
			}
			p.metrics.SearchDone("unavailable", time.Since(start))
			return nil, &UnavailableError{Query: q, Attempts: state.attempt, Cause: err}
		}

		p.logger.Debug("retrying search",
			"query", q,
			"attempt", state.attempt,
			"result", o.String(),
			"price_filters", state.usePriceFilters(),
			"delay", state.nextDelay,
			"error", err,
		)
		if err := p.sleep(ctx, state.nextDelay); err != nil {
			return nil, err
		}
	}
}

// call performs one attempt, through the breaker when enabled.
func (p *SerpAPIProvider) call(ctx context.Context, q string, band *PriceBand) (searchResponse, error) {
	if p.breaker == nil {
		return p.fetch(ctx, q, band)
	}
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.fetch(ctx, q, band)
	})
	if err != nil {
		return searchResponse{}, err
	}
	return out.(searchResponse), nil
}

func (p *SerpAPIProvider) fetch(ctx context.Context, q string, band *PriceBand) (searchResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, p.requestURL(q, band), nil)
	if err != nil {
		return searchResponse{}, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return searchResponse{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return searchResponse{}, &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded searchResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return searchResponse{}, fmt.Errorf("decode search response: %w", err)
	}
	if decoded.Error != "" && !decoded.noResults() {
		return searchResponse{}, fmt.Errorf("search backend error: %s", decoded.Error)
	}
	return decoded, nil
}

func (p *SerpAPIProvider) requestURL(q string, band *PriceBand) string {
	params := url.Values{}
	params.Set("engine", p.opts.Engine)
	params.Set("q", q)
	params.Set("api_key", p.opts.APIKey)
	params.Set("num", strconv.Itoa(p.opts.ResultsHint))
	if p.opts.Region != "" {
		params.Set("gl", p.opts.Region)
	}
	if p.opts.Lang != "" {
		params.Set("hl", p.opts.Lang)
	}
	if p.opts.Location != "" {
		params.Set("location", p.opts.Location)
	}
	if band != nil {
		params.Set("min_price", strconv.Itoa(band.Min))
		params.Set("max_price", strconv.Itoa(band.Max))
	}
	return p.opts.Endpoint + "?" + params.Encode()
}

// shape turns raw results into the mode's link list.
func (p *SerpAPIProvider) shape(resp searchResponse, q string, band *PriceBand) []models.ProductLink {
	links := make([]models.ProductLink, 0, p.opts.MaxResults)
	for _, r := range resp.ShoppingResults {
		link, ok := r.toLink(q)
		if !ok {
			continue
		}
		if p.opts.Mode == ModeOneShot {
			return append(links, link)
		}
		if !band.Contains(link.Price) || canonical.Contains(links, link.URL) {
			continue
		}
		links = append(links, link)
		if len(links) >= p.opts.MaxResults {
			break
		}
	}
	return links
}

func (p *SerpAPIProvider) storeCache(ctx context.Context, key string, links []models.ProductLink) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, key, links); err != nil {
		p.logger.Warn("search cache write failed", "error", err)
	}
}

func classify(err error) outcome {
	if err == nil {
		return outcomeOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusTooManyRequests:
			return outcomeRateLimited
		case http.StatusBadRequest:
			return outcomeBadRequest
		}
	}
	return outcomeTransient
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
