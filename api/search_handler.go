package api

import (
	"net/http"
	"strconv"

	"github.com/raushankrgupta/fitly-shop-links/search"
	"github.com/raushankrgupta/fitly-shop-links/utils"
)

// SearchProducts runs an ad-hoc catalog search. An optional ?price= narrows
// results to the band around that price.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	var band *search.PriceBand
	if raw := r.URL.Query().Get("price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price <= 0 {
			utils.RespondError(w, h.Logger, "price must be a positive number", http.StatusBadRequest)
			return
		}
		band = search.BandFor(&price)
	}

	links, err := h.Search.Search(r.Context(), q, band)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, links)
}
