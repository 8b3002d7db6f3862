package handlers

import (
	"net/http"
	"strings"

	"ledger/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type currencyRequest struct {
	Code     string  `json:"code"`
	Name     *string `json:"name"`
	Symbol   *string `json:"symbol"`
	Rate     *string `json:"exchange_rate_to_base"`
	IsActive *bool   `json:"is_active"`
}

func parseRate(raw *string) (*decimal.Decimal, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil || !rate.IsPositive() || rate.Exponent() < -10 {
		return nil, invalidField("exchange_rate_to_base", "format")
	}
	return &rate, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func (h *Handler) CreateCurrency(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req currencyRequest
	if !decode(w, r, &req) {
		return
	}
	rate, err := parseRate(req.Rate)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	currency, err := h.currencies.Create(r.Context(), actor, services.CurrencyInput{
		Code:     req.Code,
		Name:     deref(req.Name),
		Symbol:   deref(req.Symbol),
		Rate:     rate,
		IsActive: req.IsActive,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, currency)
}

func (h *Handler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.currencies.List(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(currencies))
}

func (h *Handler) GetCurrency(w http.ResponseWriter, r *http.Request) {
	currency, err := h.currencies.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, currency)
}

func (h *Handler) UpdateCurrency(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req currencyRequest
	if !decode(w, r, &req) {
		return
	}
	rate, err := parseRate(req.Rate)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	currency, err := h.currencies.Update(r.Context(), actor, chi.URLParam(r, "code"), services.CurrencyUpdate{
		Name:     req.Name,
		Symbol:   req.Symbol,
		Rate:     rate,
		IsActive: req.IsActive,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, currency)
}

func (h *Handler) DeleteCurrency(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.currencies.Delete(r.Context(), actor, chi.URLParam(r, "code")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetDefaultCurrency(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	currency, err := h.currencies.SetDefault(r.Context(), actor, chi.URLParam(r, "code"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, currency)
}

func (h *Handler) RefreshRates(w http.ResponseWriter, r *http.Request) {
	updated, err := h.currencies.RefreshRates(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (h *Handler) LiveRate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	amount := int64(100)
	if raw := query.Get("amount"); raw != "" {
		parsed, err := parseAmount("amount", raw)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		amount = parsed
	}
	quote, err := h.currencies.LiveRate(r.Context(), query.Get("from"), query.Get("to"), amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}
