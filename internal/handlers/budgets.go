package handlers

import (
	"net/http"

	"ledger/internal/models"
	"ledger/internal/services"

	"github.com/go-chi/chi/v5"
)

type budgetRequest struct {
	Name           string  `json:"name"`
	Type           string  `json:"budget_type"`
	ProjectID      *string `json:"project_id"`
	CategoryID     *string `json:"category_id"`
	Amount         string  `json:"amount"`
	Currency       string  `json:"currency"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	AlertThreshold *int    `json:"alert_threshold"`
	Description    string  `json:"description"`
	IsActive       *bool   `json:"is_active"`
}

func (req budgetRequest) input() (services.BudgetInput, error) {
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return services.BudgetInput{}, err
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return services.BudgetInput{}, err
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return services.BudgetInput{}, err
	}
	return services.BudgetInput{
		Name:           req.Name,
		Type:           models.BudgetType(req.Type),
		ProjectID:      req.ProjectID,
		CategoryID:     req.CategoryID,
		AmountMinor:    amount,
		Currency:       req.Currency,
		StartDate:      start,
		EndDate:        end,
		AlertThreshold: req.AlertThreshold,
		Description:    req.Description,
		IsActive:       req.IsActive,
	}, nil
}

func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req budgetRequest
	if !decode(w, r, &req) {
		return
	}
	input, err := req.input()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	budget, err := h.budgets.Create(r.Context(), actor, input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, budget)
}

func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	budgets, err := h.budgets.List(r.Context(), actor.OwnerID, r.URL.Query().Get("active") == "true")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(budgets))
}

func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	budget, err := h.budgets.Get(r.Context(), actor.OwnerID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, budget)
}

func (h *Handler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req budgetRequest
	if !decode(w, r, &req) {
		return
	}
	input, err := req.input()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	budget, err := h.budgets.Update(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, budget)
}

func (h *Handler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.budgets.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ActiveBudgets(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	budgets, err := h.budgets.Active(r.Context(), actor.OwnerID, h.today())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(budgets))
}

func (h *Handler) BudgetAlerts(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	alerts, err := h.budgets.Alerts(r.Context(), actor.OwnerID, h.today())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(alerts))
}

func (h *Handler) BudgetStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	stats, err := h.budgets.Stats(r.Context(), actor.OwnerID, h.today())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
