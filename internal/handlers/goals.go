package handlers

import (
	"net/http"

	"ledger/internal/models"
	"ledger/internal/services"

	"github.com/go-chi/chi/v5"
)

type goalRequest struct {
	Name         string  `json:"name"`
	WalletID     string  `json:"wallet_id"`
	TargetAmount string  `json:"target_amount"`
	TargetDate   *string `json:"target_date"`
	Status       string  `json:"status"`
	Description  string  `json:"description"`
	Icon         string  `json:"icon"`
}

func (req goalRequest) input() (services.GoalInput, error) {
	target, err := parseAmount("target_amount", req.TargetAmount)
	if err != nil {
		return services.GoalInput{}, err
	}
	targetDate, err := parseOptionalDate("target_date", req.TargetDate)
	if err != nil {
		return services.GoalInput{}, err
	}
	return services.GoalInput{
		Name:        req.Name,
		WalletID:    req.WalletID,
		TargetMinor: target,
		TargetDate:  targetDate,
		Status:      models.GoalStatus(req.Status),
		Description: req.Description,
		Icon:        req.Icon,
	}, nil
}

type contributeRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req goalRequest
	if !decode(w, r, &req) {
		return
	}
	input, err := req.input()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	goal, err := h.goals.Create(r.Context(), actor, input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, goal)
}

func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	status := models.GoalStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.GoalActive, models.GoalCompleted, models.GoalCancelled:
	default:
		respondInvalid(w, "status", "unknown")
		return
	}
	goals, err := h.goals.List(r.Context(), actor.OwnerID, status)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(goals))
}

func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	goal, err := h.goals.Get(r.Context(), actor.OwnerID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, goal)
}

func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req goalRequest
	if !decode(w, r, &req) {
		return
	}
	input, err := req.input()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	goal, err := h.goals.Update(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, goal)
}

func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.goals.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ContributeGoal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req contributeRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	goal, err := h.goals.Contribute(r.Context(), actor, chi.URLParam(r, "id"), amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, goal)
}

func (h *Handler) GoalStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	stats, err := h.goals.Stats(r.Context(), actor.OwnerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
