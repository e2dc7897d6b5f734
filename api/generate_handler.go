package api

import (
	"errors"
	"net/http"

	"github.com/raushankrgupta/fitly-shop-links/enrich"
	"github.com/raushankrgupta/fitly-shop-links/generator"
	"github.com/raushankrgupta/fitly-shop-links/models"
	"github.com/raushankrgupta/fitly-shop-links/utils"
)

type GenerateRequest struct {
	Answers models.GenerationAnswers `json:"answers"`
	Count   int                      `json:"count"`
}

// GenerateResponse pairs the generated cards with their shopping links.
// Saved is false when the links could not be persisted.
type GenerateResponse struct {
	Items []models.OutfitCard     `json:"items"`
	Links []models.OutfitProducts `json:"links"`
	Saved bool                    `json:"saved"`
}

// GenerateOutfitsWithLinks generates outfits from style answers and enriches them in one call.
func (h *Handler) GenerateOutfitsWithLinks(w http.ResponseWriter, r *http.Request) {
	// 1. Parse and validate answers
	var req GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, h.Logger, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := models.ValidateAnswers(req.Answers); err != nil {
		utils.RespondError(w, h.Logger, err.Error(), http.StatusBadRequest)
		return
	}
	owner := OwnerFromContext(r.Context())

	// 2. Generate cards
	outfits, err := h.Generator.Generate(r.Context(), req.Answers, generator.ClampCount(req.Count))
	if err != nil {
		h.Logger.Error("outfit generation failed", "error", err)
		utils.RespondError(w, h.Logger, "Failed to generate outfits", http.StatusBadGateway)
		return
	}

	// 3. Attach links; a storage failure still returns the outfits
	resp := GenerateResponse{Items: outfits, Links: []models.OutfitProducts{}}
	groups, err := h.Enricher.Enrich(r.Context(), outfits, owner)
	switch {
	case err == nil:
		resp.Links = groups
		resp.Saved = true
	case errors.Is(err, enrich.ErrPersistence):
		h.Logger.Warn("generated outfits not saved", "error", err, "outfits", len(outfits))
	default:
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}
