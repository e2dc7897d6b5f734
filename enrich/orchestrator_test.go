package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raushankrgupta/fitly-shop-links/models"
	"github.com/raushankrgupta/fitly-shop-links/search"
	"github.com/raushankrgupta/fitly-shop-links/store"
)

func fp(v float64) *float64 { return &v }

type searchCall struct {
	query string
	band  *search.PriceBand
}

// scriptedProvider answers by query and records concurrency.
type scriptedProvider struct {
	mu      sync.Mutex
	calls   []searchCall
	answers map[string][]models.ProductLink
	fail    map[string]error
	delay   time.Duration

	inFlight atomic.Int32
	peak     atomic.Int32
}

func (p *scriptedProvider) Search(ctx context.Context, query string, band *search.PriceBand) ([]models.ProductLink, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}

	p.mu.Lock()
	p.calls = append(p.calls, searchCall{query: query, band: band})
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := p.fail[query]; err != nil {
		return nil, err
	}
	return p.answers[query], nil
}

func (p *scriptedProvider) callFor(query string) (searchCall, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.calls {
		if c.query == query {
			return c, true
		}
	}
	return searchCall{}, false
}

type failingStore struct {
	*store.MemoryStore
}

func (failingStore) UpsertItemLinks(context.Context, string, string, models.Owner, []models.ProductLink) error {
	return errors.New("connection reset")
}

func shopLink(url string, price float64) models.ProductLink {
	return models.ProductLink{Title: url, URL: url, Price: fp(price), Source: "Shop"}
}

func TestEnrichEndToEnd(t *testing.T) {
	provider := &scriptedProvider{
		answers: map[string][]models.ProductLink{
			"Uniqlo White Shirt": {shopLink("https://shop.example.com/shirt", 95)},
		},
		fail: map[string]error{
			"Blue Jeans": &search.UnavailableError{Query: "Blue Jeans", Attempts: 3, Cause: errors.New("timeout")},
		},
	}
	links := store.NewMemoryStore()
	orch := New(provider, links, Options{Concurrency: 4, MaxLinks: 1}, nil, nil)

	outfits := []models.OutfitCard{{
		ID:    "1",
		Title: "Smart Casual",
		Items: []models.OutfitItem{
			{Name: "White Shirt", Brand: "Uniqlo", Price: fp(100)},
			{Name: "Blue Jeans"},
		},
	}}
	owner := models.Owner{SessionID: "sess-1"}

	got, err := orch.Enrich(context.Background(), outfits, owner)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].OutfitID)
	require.Len(t, got[0].Products, 2)
	assert.Equal(t, "White Shirt", got[0].Products[0].ItemName)
	require.Len(t, got[0].Products[0].Links, 1)
	assert.Equal(t, "https://shop.example.com/shirt", got[0].Products[0].Links[0].URL)
	assert.Equal(t, "Blue Jeans", got[0].Products[1].ItemName)
	assert.NotNil(t, got[0].Products[1].Links)
	assert.Empty(t, got[0].Products[1].Links)

	call, ok := provider.callFor("Uniqlo White Shirt")
	require.True(t, ok)
	assert.Equal(t, &search.PriceBand{Min: 60, Max: 140}, call.band)
	call, ok = provider.callFor("Blue Jeans")
	require.True(t, ok)
	assert.Nil(t, call.band)

	assert.Equal(t, 2, links.Len())
	rec, ok := links.Record("1", "Blue Jeans")
	require.True(t, ok)
	assert.Empty(t, rec.Links)
	require.NotNil(t, rec.SessionID)
	assert.Equal(t, "sess-1", *rec.SessionID)
}

func TestEnrichTwiceIsIdempotent(t *testing.T) {
	provider := &scriptedProvider{answers: map[string][]models.ProductLink{
		"White Shirt": {shopLink("https://a.example.com/1", 10)},
	}}
	links := store.NewMemoryStore()
	orch := New(provider, links, Options{}, nil, nil)
	outfits := []models.OutfitCard{{ID: "1", Items: []models.OutfitItem{{Name: "White Shirt"}}}}

	first, err := orch.Enrich(context.Background(), outfits, models.Owner{})
	require.NoError(t, err)
	before, _ := links.Record("1", "White Shirt")

	time.Sleep(2 * time.Millisecond)
	second, err := orch.Enrich(context.Background(), outfits, models.Owner{})
	require.NoError(t, err)
	after, _ := links.Record("1", "White Shirt")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, links.Len())
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestEnrichRespectsConcurrencyBound(t *testing.T) {
	provider := &scriptedProvider{delay: 20 * time.Millisecond}
	orch := New(provider, store.NewMemoryStore(), Options{Concurrency: 2}, nil, nil)

	items := make([]models.OutfitItem, 10)
	for i := range items {
		items[i] = models.OutfitItem{Name: fmt.Sprintf("Item %d", i)}
	}
	got, err := orch.Enrich(context.Background(), []models.OutfitCard{{ID: "1", Items: items}}, models.Owner{})
	require.NoError(t, err)

	assert.Len(t, got[0].Products, 10)
	assert.LessOrEqual(t, provider.peak.Load(), int32(2))
	assert.Len(t, provider.calls, 10)
}

func TestEnrichDedupesAndCapsLinks(t *testing.T) {
	raw := []models.ProductLink{
		shopLink("https://shop.example.com/a?utm_source=x", 1),
		shopLink("https://SHOP.example.com/a", 2),
		shopLink("https://shop.example.com/b", 3),
		shopLink("https://shop.example.com/c", 4),
	}
	provider := &scriptedProvider{answers: map[string][]models.ProductLink{"Shirt": raw}}
	orch := New(provider, store.NewMemoryStore(), Options{MaxLinks: 2}, nil, nil)

	got, err := orch.Enrich(context.Background(), []models.OutfitCard{{ID: "1", Items: []models.OutfitItem{{Name: "Shirt"}}}}, models.Owner{})
	require.NoError(t, err)

	gotLinks := got[0].Products[0].Links
	require.Len(t, gotLinks, 2)
	assert.Equal(t, "https://shop.example.com/a?utm_source=x", gotLinks[0].URL)
	assert.Equal(t, "https://shop.example.com/b", gotLinks[1].URL)
}

func TestEnrichSkipsBlankAndRepeatedItems(t *testing.T) {
	provider := &scriptedProvider{}
	links := store.NewMemoryStore()
	orch := New(provider, links, Options{}, nil, nil)

	outfits := []models.OutfitCard{
		{ID: "1", Items: []models.OutfitItem{{Name: "  "}, {Name: "Shirt"}, {Name: " Shirt "}}},
		{ID: "2", Items: []models.OutfitItem{{Name: ""}}},
		{ID: "3", Items: []models.OutfitItem{{Name: "Shirt"}}},
	}
	got, err := orch.Enrich(context.Background(), outfits, models.Owner{})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Len(t, got[0].Products, 1)
	assert.Empty(t, got[1].Products)
	assert.NotNil(t, got[1].Products)
	assert.Len(t, got[2].Products, 1)
	assert.Equal(t, 2, links.Len())
	assert.Len(t, provider.calls, 2)
}

func TestEnrichPreservesOutfitAndItemOrder(t *testing.T) {
	provider := &scriptedProvider{delay: time.Millisecond}
	orch := New(provider, store.NewMemoryStore(), Options{Concurrency: 8}, nil, nil)

	outfits := []models.OutfitCard{
		{ID: "b", Items: []models.OutfitItem{{Name: "Z"}, {Name: "A"}, {Name: "M"}}},
		{ID: "a", Items: []models.OutfitItem{{Name: "Q"}, {Name: "B"}}},
	}
	got, err := orch.Enrich(context.Background(), outfits, models.Owner{})
	require.NoError(t, err)

	var order []string
	for _, g := range got {
		for _, p := range g.Products {
			order = append(order, g.OutfitID+"/"+p.ItemName)
		}
	}
	assert.Equal(t, []string{"b/Z", "b/A", "b/M", "a/Q", "a/B"}, order)
}

func TestEnrichPersistenceFailure(t *testing.T) {
	provider := &scriptedProvider{}
	orch := New(provider, failingStore{store.NewMemoryStore()}, Options{}, nil, nil)

	_, err := orch.Enrich(context.Background(), []models.OutfitCard{{ID: "1", Items: []models.OutfitItem{{Name: "Shirt"}}}}, models.Owner{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.True(t, strings.Contains(err.Error(), "connection reset"))
}

func TestEnrichRejectsInvalidOutfits(t *testing.T) {
	orch := New(&scriptedProvider{}, store.NewMemoryStore(), Options{}, nil, nil)
	_, err := orch.Enrich(context.Background(), []models.OutfitCard{{ID: ""}}, models.Owner{})
	assert.ErrorIs(t, err, models.ErrInvalidOutfit)
}

type stockInspector struct{}

func (stockInspector) Inspect(_ context.Context, l models.ProductLink) models.ProductLink {
	in := true
	l.InStock = &in
	return l
}

func TestEnrichRunsInspector(t *testing.T) {
	provider := &scriptedProvider{answers: map[string][]models.ProductLink{
		"Shirt": {shopLink("https://a.example.com/1", 10)},
	}}
	orch := New(provider, store.NewMemoryStore(), Options{}, nil, nil).WithInspector(stockInspector{})

	got, err := orch.Enrich(context.Background(), []models.OutfitCard{{ID: "1", Items: []models.OutfitItem{{Name: "Shirt"}}}}, models.Owner{})
	require.NoError(t, err)
	require.NotNil(t, got[0].Products[0].Links[0].InStock)
	assert.True(t, *got[0].Products[0].Links[0].InStock)
}

func TestLinkedItems(t *testing.T) {
	items, linked := LinkedItems([]models.OutfitProducts{
		{OutfitID: "1", Products: []models.ItemProducts{{ItemName: "a", Links: []models.ProductLink{shopLink("https://x", 1)}}, {ItemName: "b"}}},
	})
	assert.Equal(t, 2, items)
	assert.Equal(t, 1, linked)
}
