package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raushankrgupta/fitly-shop-links/enrich"
	"github.com/raushankrgupta/fitly-shop-links/generator"
	"github.com/raushankrgupta/fitly-shop-links/models"
	"github.com/raushankrgupta/fitly-shop-links/search"
	"github.com/raushankrgupta/fitly-shop-links/store"
	"github.com/raushankrgupta/fitly-shop-links/utils"
)

// JobService is the part of enrich.JobRunner the handlers use.
type JobService interface {
	Submit(ctx context.Context, outfits []models.OutfitCard, owner models.Owner, notifyEmail string) (models.EnrichmentJob, error)
	Get(ctx context.Context, id string) (models.EnrichmentJob, error)
	Wait(ctx context.Context, id string) ([]models.OutfitProducts, error)
	Cancel(id string) error
}

// Handler carries the dependencies of every route.
type Handler struct {
	Enricher  enrich.Enricher
	Jobs      JobService
	Links     store.LinkStore
	Search    search.Provider
	Generator generator.Generator
	Gatherer  prometheus.Gatherer
	JWTSecret string
	Logger    *utils.Logger
}

// NewRouter wires the HTTP surface.
func NewRouter(h *Handler) http.Handler {
	if h.Logger == nil {
		h.Logger = utils.NopLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(utils.LatencyMiddleware(h.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", SessionHeader},
		MaxAge:         300,
	}))

	r.Get("/api/health", h.Health)
	if h.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(IdentityMiddleware(h.JWTSecret, h.Logger))

		r.Get("/api/outfit-links", h.GetOutfitLinks)
		r.Get("/api/outfit-links/mine", h.GetMyOutfitLinks)
		r.Post("/api/outfit-links/enrich", h.EnrichOutfits)

		r.Post("/api/enrich-jobs", h.SubmitEnrichJob)
		r.Get("/api/enrich-jobs/{id}", h.GetEnrichJob)
		r.Get("/api/enrich-jobs/{id}/result", h.WaitEnrichJob)
		r.Delete("/api/enrich-jobs/{id}", h.CancelEnrichJob)

		r.Get("/api/search", h.SearchProducts)
		r.Post("/api/generate/outfits-with-links", h.GenerateOutfitsWithLinks)
	})
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondErr maps pipeline errors onto status codes.
func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidOutfit), errors.Is(err, search.ErrEmptyQuery):
		utils.RespondError(w, h.Logger, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		utils.RespondError(w, h.Logger, "Not found", http.StatusNotFound)
	case errors.Is(err, enrich.ErrJobFinished):
		utils.RespondError(w, h.Logger, err.Error(), http.StatusConflict)
	case errors.Is(err, enrich.ErrJobCancelled):
		utils.RespondError(w, h.Logger, err.Error(), http.StatusGone)
	case errors.Is(err, search.ErrSearchUnavailable):
		utils.RespondError(w, h.Logger, "Product search is temporarily unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		utils.RespondError(w, h.Logger, "Request cancelled", http.StatusGatewayTimeout)
	default:
		h.Logger.Error("request failed", "error", err)
		utils.RespondError(w, h.Logger, "Internal server error", http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
}
