package handlers

import (
	"net/http"
)

// Job handlers run across every owner and are guarded by the job token
// instead of a bearer session.

func (h *Handler) JobRefreshRates(w http.ResponseWriter, r *http.Request) {
	updated, err := h.jobs.RefreshRates(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (h *Handler) JobProcessRecurring(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	summary, err := h.jobs.ProcessRecurring(r.Context(), asOf)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) JobProcessRenewals(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	summary, err := h.jobs.ProcessRenewals(r.Context(), asOf)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) JobNotifyRenewals(w http.ResponseWriter, r *http.Request) {
	summary, err := h.jobs.NotifyRenewals(r.Context(), h.today())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
