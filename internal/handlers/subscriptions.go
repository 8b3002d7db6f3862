package handlers

import (
	"net/http"

	"ledger/internal/models"
	"ledger/internal/recurrence"
	"ledger/internal/services"

	"github.com/go-chi/chi/v5"
)

type subscriptionRequest struct {
	Name             string  `json:"name"`
	Amount           string  `json:"amount"`
	BillingCycle     string  `json:"billing_cycle"`
	CategoryID       string  `json:"category_id"`
	WalletID         string  `json:"wallet_id"`
	StartDate        string  `json:"start_date"`
	NextBillingDate  *string `json:"next_billing_date"`
	EndDate          *string `json:"end_date"`
	NotifyDaysBefore *int    `json:"notify_days_before"`
	Description      string  `json:"description"`
	WebsiteURL       string  `json:"website_url"`
	Notes            string  `json:"notes"`
}

func (req subscriptionRequest) input() (services.SubscriptionInput, error) {
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return services.SubscriptionInput{}, err
	}
	cycle, err := recurrence.ParseCycle(req.BillingCycle)
	if err != nil {
		return services.SubscriptionInput{}, invalidField("billing_cycle", "unknown")
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return services.SubscriptionInput{}, err
	}
	next, err := parseOptionalDate("next_billing_date", req.NextBillingDate)
	if err != nil {
		return services.SubscriptionInput{}, err
	}
	end, err := parseOptionalDate("end_date", req.EndDate)
	if err != nil {
		return services.SubscriptionInput{}, err
	}
	return services.SubscriptionInput{
		Name:             req.Name,
		AmountMinor:      amount,
		BillingCycle:     cycle,
		CategoryID:       req.CategoryID,
		WalletID:         req.WalletID,
		StartDate:        start,
		NextBillingDate:  next,
		EndDate:          end,
		NotifyDaysBefore: req.NotifyDaysBefore,
		Description:      req.Description,
		WebsiteURL:       req.WebsiteURL,
		Notes:            req.Notes,
	}, nil
}

func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req subscriptionRequest
	if !decode(w, r, &req) {
		return
	}
	input, err := req.input()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	sub, err := h.subscriptions.Create(r.Context(), actor, input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	status := models.SubscriptionStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.SubscriptionActive, models.SubscriptionPaused, models.SubscriptionCancelled:
	default:
		respondInvalid(w, "status", "unknown")
		return
	}
	subs, err := h.subscriptions.List(r.Context(), actor.OwnerID, status)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(subs))
}

func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	sub, err := h.subscriptions.Get(r.Context(), actor.OwnerID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req subscriptionRequest
	if !decode(w, r, &req) {
		return
	}
	input, err := req.input()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	sub, err := h.subscriptions.Update(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.subscriptions.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PauseSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	sub, err := h.subscriptions.Pause(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (h *Handler) ResumeSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	sub, err := h.subscriptions.Resume(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (h *Handler) RenewSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	result, err := h.subscriptions.Renew(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) ProcessRenewals(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	asOf, err := h.asOf(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	result, err := h.subscriptions.ProcessRenewals(r.Context(), actor, asOf)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) UpcomingSubscriptions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	days, err := queryInt(r, "days", 7)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if days < 0 {
		respondInvalid(w, "days", "negative")
		return
	}
	subs, err := h.subscriptions.Upcoming(r.Context(), actor.OwnerID, days)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(subs))
}

func (h *Handler) SubscriptionStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	stats, err := h.subscriptions.Stats(r.Context(), actor.OwnerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
