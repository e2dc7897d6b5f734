package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/raushankrgupta/fitly-shop-links/utils"
)

// SubmitEnrichJob queues an enrichment and answers 202 with the pending job.
func (h *Handler) SubmitEnrichJob(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, h.Logger, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Outfits) == 0 {
		utils.RespondError(w, h.Logger, "outfits are required", http.StatusBadRequest)
		return
	}

	job, err := h.Jobs.Submit(r.Context(), req.Outfits, OwnerFromContext(r.Context()), req.NotifyEmail)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	w.Header().Set("Location", "/api/enrich-jobs/"+job.ID)
	utils.RespondJSON(w, http.StatusAccepted, job)
}

func (h *Handler) GetEnrichJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, job)
}

// WaitEnrichJob blocks until the job finishes or the client goes away.
func (h *Handler) WaitEnrichJob(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Jobs.Wait(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, groups)
}

func (h *Handler) CancelEnrichJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Jobs.Cancel(id); err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}
