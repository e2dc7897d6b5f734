package api

import (
	"net/http"
	"strings"

	"github.com/raushankrgupta/fitly-shop-links/models"
	"github.com/raushankrgupta/fitly-shop-links/utils"
)

// EnrichRequest is the body of the synchronous and job-based enrich routes.
type EnrichRequest struct {
	Outfits     []models.OutfitCard `json:"outfits"`
	NotifyEmail string              `json:"notify_email,omitempty"`
}

// outfitIDsParam reads ?outfit_ids= as a repeatable, comma tolerant list.
func outfitIDsParam(r *http.Request) []string {
	var ids []string
	for _, raw := range r.URL.Query()["outfit_ids"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// GetOutfitLinks returns stored links for the requested outfits, grouped by outfit.
func (h *Handler) GetOutfitLinks(w http.ResponseWriter, r *http.Request) {
	ids := outfitIDsParam(r)
	if len(ids) == 0 {
		utils.RespondError(w, h.Logger, "outfit_ids is required", http.StatusBadRequest)
		return
	}

	groups, err := h.Links.GetByOutfitIDs(r.Context(), ids)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, groups)
}

// GetMyOutfitLinks returns every link set stored for the calling user or session.
func (h *Handler) GetMyOutfitLinks(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	if owner.IsZero() {
		utils.RespondError(w, h.Logger, "Missing session", http.StatusBadRequest)
		return
	}

	groups, err := h.Links.GetByOwner(r.Context(), owner)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, groups)
}

// EnrichOutfits runs enrichment inline and returns the grouped links.
func (h *Handler) EnrichOutfits(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, h.Logger, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Outfits) == 0 {
		utils.RespondError(w, h.Logger, "outfits are required", http.StatusBadRequest)
		return
	}

	groups, err := h.Enricher.Enrich(r.Context(), req.Outfits, OwnerFromContext(r.Context()))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, groups)
}
