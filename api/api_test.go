package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raushankrgupta/fitly-shop-links/enrich"
	"github.com/raushankrgupta/fitly-shop-links/generator"
	"github.com/raushankrgupta/fitly-shop-links/metrics"
	"github.com/raushankrgupta/fitly-shop-links/models"
	"github.com/raushankrgupta/fitly-shop-links/search"
	"github.com/raushankrgupta/fitly-shop-links/store"
	"github.com/raushankrgupta/fitly-shop-links/utils"
)

const testSecret = "test-secret"

// echoProvider answers every query with one link derived from the query.
type echoProvider struct {
	mu    sync.Mutex
	bands []*search.PriceBand
	err   error
}

func (p *echoProvider) Search(_ context.Context, query string, band *search.PriceBand) ([]models.ProductLink, error) {
	p.mu.Lock()
	p.bands = append(p.bands, band)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if strings.TrimSpace(query) == "" {
		return nil, search.ErrEmptyQuery
	}
	price := 99.0
	return []models.ProductLink{{
		Title:  query,
		URL:    "https://shop.example.com/p/" + url.PathEscape(query),
		Price:  &price,
		Source: "Shop",
	}}, nil
}

type rejectingStore struct {
	*store.MemoryStore
}

func (rejectingStore) UpsertItemLinks(context.Context, string, string, models.Owner, []models.ProductLink) error {
	return errors.New("write concern timeout")
}

type testServer struct {
	router   http.Handler
	links    *store.MemoryStore
	provider *echoProvider
	jobs     *enrich.JobRunner
}

func newTestServer(t *testing.T, links store.LinkStore) *testServer {
	t.Helper()
	mem := store.NewMemoryStore()
	if links == nil {
		links = mem
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	provider := &echoProvider{}
	orch := enrich.New(provider, links, enrich.Options{Concurrency: 2}, nil, m)
	jobs := enrich.NewJobRunner(orch, mem, links, nil, m)
	t.Cleanup(func() { _ = jobs.Shutdown(context.Background()) })

	h := &Handler{
		Enricher:  orch,
		Jobs:      jobs,
		Links:     links,
		Search:    provider,
		Generator: generator.NewCatalog(),
		Gatherer:  reg,
		JWTSecret: testSecret,
		Logger:    utils.NopLogger(),
	}
	return &testServer{router: NewRouter(h), links: mem, provider: provider, jobs: jobs}
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func fp(v float64) *float64 { return &v }

var sampleOutfits = []models.OutfitCard{{
	ID:    "outfit-1",
	Title: "Smart Casual",
	Items: []models.OutfitItem{
		{Name: "White Shirt", Brand: "Uniqlo", Price: fp(100)},
		{Name: "Blue Jeans"},
	},
}}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	s.do(t, http.MethodPost, "/api/outfit-links/enrich", EnrichRequest{Outfits: sampleOutfits}, nil)
	rec = s.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fitly_enrich_items_total{result="linked"} 2`)
}

func TestEnrichThenReadBack(t *testing.T) {
	s := newTestServer(t, nil)
	session := map[string]string{SessionHeader: "sess-9"}

	rec := s.do(t, http.MethodPost, "/api/outfit-links/enrich", EnrichRequest{Outfits: sampleOutfits}, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var enriched []models.OutfitProducts
	decode(t, rec, &enriched)
	require.Len(t, enriched, 1)
	require.Len(t, enriched[0].Products, 2)
	assert.Equal(t, "https://shop.example.com/p/Uniqlo%20White%20Shirt", enriched[0].Products[0].Links[0].URL)

	rec = s.do(t, http.MethodGet, "/api/outfit-links?outfit_ids=outfit-1&outfit_ids=missing", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored []models.OutfitProducts
	decode(t, rec, &stored)
	assertSameGroups(t, enriched, stored)

	rec = s.do(t, http.MethodGet, "/api/outfit-links/mine", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []models.OutfitProducts
	decode(t, rec, &mine)
	assertSameGroups(t, enriched, mine)

	rec = s.do(t, http.MethodGet, "/api/outfit-links/mine", nil, map[string]string{SessionHeader: "someone-else"})
	assert.JSONEq(t, `[]`, rec.Body.String())
}

// assertSameGroups compares outfit groups without relying on item order, which
// the stores do not guarantee because items are persisted concurrently.
func assertSameGroups(t *testing.T, want, got []models.OutfitProducts) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].OutfitID, got[i].OutfitID)
		assert.ElementsMatch(t, want[i].Products, got[i].Products)
	}
}

func TestEnrichValidation(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/outfit-links/enrich", EnrichRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad := []models.OutfitCard{{ID: " ", Items: []models.OutfitItem{{Name: "Shirt"}}}}
	rec = s.do(t, http.MethodPost, "/api/outfit-links/enrich", EnrichRequest{Outfits: bad}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, s.links.Len())

	// out-of-range scores are clamped, not rejected
	loose := []models.OutfitCard{{ID: "x", Confidence: 140, MatchScore: -2, Items: []models.OutfitItem{{Name: "Shirt"}}}}
	rec = s.do(t, http.MethodPost, "/api/outfit-links/enrich", EnrichRequest{Outfits: loose}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.links.Len())

	rec = s.do(t, http.MethodGet, "/api/outfit-links", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/outfit-links/mine", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOutfitIDsParamSplitsCommas(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/outfit-links?outfit_ids=a,%20b&outfit_ids=c&outfit_ids=", nil)
	assert.Equal(t, []string{"a", "b", "c"}, outfitIDsParam(r))
}

func TestBearerTokenIdentity(t *testing.T) {
	s := newTestServer(t, nil)
	token, err := utils.GenerateToken(testSecret, "user-7", time.Hour)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/outfit-links/enrich", EnrichRequest{Outfits: sampleOutfits},
		map[string]string{"Authorization": "Bearer " + token, SessionHeader: "sess-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	record, ok := s.links.Record("outfit-1", "Blue Jeans")
	require.True(t, ok)
	require.NotNil(t, record.UserID)
	assert.Equal(t, "user-7", *record.UserID)
	require.NotNil(t, record.SessionID)
	assert.Equal(t, "sess-1", *record.SessionID)

	rec = s.do(t, http.MethodGet, "/api/outfit-links/mine", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/outfit-links/mine", nil, map[string]string{"Authorization": "Basic abc"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/search?q=linen+shirt&price=100", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var links []models.ProductLink
	decode(t, rec, &links)
	require.Len(t, links, 1)
	assert.Equal(t, "linen shirt", links[0].Title)
	require.Len(t, s.provider.bands, 1)
	assert.Equal(t, &search.PriceBand{Min: 60, Max: 140}, s.provider.bands[0])

	rec = s.do(t, http.MethodGet, "/api/search?q=shirt&price=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/search?q=", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.provider.err = &search.UnavailableError{Query: "shirt", Attempts: 3, Cause: errors.New("429")}
	rec = s.do(t, http.MethodGet, "/api/search?q=shirt", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEnrichJobLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/enrich-jobs", EnrichRequest{Outfits: sampleOutfits}, map[string]string{SessionHeader: "sess-2"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var job models.EnrichmentJob
	decode(t, rec, &job)
	assert.Equal(t, models.JobPending, job.Status)
	assert.Equal(t, "/api/enrich-jobs/"+job.ID, rec.Header().Get("Location"))

	rec = s.do(t, http.MethodGet, "/api/enrich-jobs/"+job.ID+"/result", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var groups []models.OutfitProducts
	decode(t, rec, &groups)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Products, 2)

	rec = s.do(t, http.MethodGet, "/api/enrich-jobs/"+job.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &job)
	assert.Equal(t, models.JobComplete, job.Status)
	assert.Equal(t, 2, job.LinkedItems)

	rec = s.do(t, http.MethodDelete, "/api/enrich-jobs/"+job.ID, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/enrich-jobs/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/enrich-jobs/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateOutfitsWithLinks(t *testing.T) {
	s := newTestServer(t, nil)

	body := GenerateRequest{Answers: models.GenerationAnswers{Occasion: "office", Budget: "premium"}, Count: 2}
	rec := s.do(t, http.MethodPost, "/api/generate/outfits-with-links", body, map[string]string{SessionHeader: "sess-3"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp GenerateResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Items, 2)
	require.Len(t, resp.Links, 2)
	assert.True(t, resp.Saved)
	for i, card := range resp.Items {
		assert.Equal(t, card.ID, resp.Links[i].OutfitID)
		assert.Len(t, resp.Links[i].Products, len(card.Items))
	}

	rec = s.do(t, http.MethodPost, "/api/generate/outfits-with-links",
		GenerateRequest{Answers: models.GenerationAnswers{Budget: "unlimited"}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateStillAnswersWhenLinksCannotBeSaved(t *testing.T) {
	s := newTestServer(t, rejectingStore{store.NewMemoryStore()})

	rec := s.do(t, http.MethodPost, "/api/generate/outfits-with-links", GenerateRequest{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GenerateResponse
	decode(t, rec, &resp)
	assert.Len(t, resp.Items, generator.DefaultCount)
	assert.Empty(t, resp.Links)
	assert.False(t, resp.Saved)

	rec = s.do(t, http.MethodPost, "/api/outfit-links/enrich", EnrichRequest{Outfits: sampleOutfits}, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
