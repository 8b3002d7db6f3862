package handlers

import (
	"fmt"
	"log"
	"net/http"

	"ledger/internal/report"
	"ledger/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	today := h.today()
	month, err := queryInt(r, "month", int(today.Month()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	year, err := queryInt(r, "year", today.Year())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	result, err := h.analytics.MonthlyReport(r.Context(), actor.OwnerID, month, year)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "", "json":
		respondJSON(w, http.StatusOK, result)
	case "xlsx":
		body, err := report.Workbook(result)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(result)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			log.Printf("write report: %v", err)
		}
	default:
		respondInvalid(w, "format", "unknown")
	}
}

func (h *Handler) ProjectProfitability(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	projects, err := h.analytics.ProjectProfitability(r.Context(), actor.OwnerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(projects))
}

func (h *Handler) CashFlow(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	start, err := queryDate(r, "start_date")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	end, err := queryDate(r, "end_date")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	days, err := h.analytics.CashFlow(r.Context(), actor.OwnerID, start, end, h.today())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(days))
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	dashboard, err := h.analytics.Dashboard(r.Context(), actor.OwnerID, h.today())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dashboard)
}

func (h *Handler) ReferenceData(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	data, err := h.analytics.ReferenceData(r.Context(), actor.OwnerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, data)
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := store.HistoryFilter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit", 50); err != nil {
		respondServiceError(w, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		respondServiceError(w, err)
		return
	}
	entries, err := h.history.List(r.Context(), actor.OwnerID, filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(entries))
}
