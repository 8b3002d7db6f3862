package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"ledger/internal/date"
	"ledger/internal/db"
	"ledger/internal/exchange"
	"ledger/internal/middleware"
	"ledger/internal/money"
	"ledger/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondInvalid(w http.ResponseWriter, field, rule string) {
	respondJSON(w, http.StatusBadRequest, map[string]string{"error": "validation_failed", "field": field, "rule": rule})
}

var errorStatuses = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{services.ErrTargetNotFound, http.StatusNotFound, "target_not_found"},
	{services.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{services.ErrSameWalletTransfer, http.StatusBadRequest, "same_wallet_transfer"},
	{services.ErrWalletInUse, http.StatusConflict, "wallet_in_use"},
	{services.ErrCategoryInUse, http.StatusConflict, "category_in_use"},
	{services.ErrCurrencyInUse, http.StatusConflict, "currency_in_use"},
	{services.ErrDefaultCurrency, http.StatusConflict, "default_currency"},
	{services.ErrDuplicate, http.StatusConflict, "duplicate"},
	{db.ErrRetryLimit, http.StatusConflict, "conflict"},
	{services.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{services.ErrSubscriptionInactive, http.StatusUnprocessableEntity, "subscription_inactive"},
	{services.ErrInvalidStatusTransition, http.StatusUnprocessableEntity, "invalid_status_transition"},
	{services.ErrGoalCancelled, http.StatusUnprocessableEntity, "goal_cancelled"},
	{exchange.ErrRateUnavailable, http.StatusServiceUnavailable, "rate_unavailable"},
}

// respondServiceError maps service errors to HTTP statuses. Unknown errors
// are logged and reported as 500 without detail.
func respondServiceError(w http.ResponseWriter, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		respondInvalid(w, verr.Field, verr.Rule)
		return
	}
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			respondError(w, e.status, e.code)
			return
		}
	}
	log.Printf("request failed: %v", err)
	respondError(w, http.StatusInternalServerError, "internal_error")
}

// actorFrom returns the authenticated owner acting on its own data.
func actorFrom(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return services.Actor{}, false
	}
	actor := services.OwnerActor(ownerID)
	actor.IPAddress = clientIP(r)
	return actor, true
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.HasSuffix(host, "]") {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}

func decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}

func invalidField(field, rule string) error {
	return &services.ValidationError{Field: field, Rule: rule}
}

func parseAmount(field, raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil {
		return 0, invalidField(field, "format")
	}
	return amount, nil
}

func parseOptionalAmount(field string, raw *string) (int64, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return 0, nil
	}
	return parseAmount(field, *raw)
}

func parseDate(field, raw string) (date.Date, error) {
	d, err := date.Parse(raw)
	if err != nil {
		return date.Date{}, invalidField(field, "format")
	}
	return d, nil
}

func parseOptionalDate(field string, raw *string) (*date.Date, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	d, err := parseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func queryDate(r *http.Request, key string) (*date.Date, error) {
	raw := r.URL.Query().Get(key)
	return parseOptionalDate(key, &raw)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidField(key, "format")
	}
	return value, nil
}

func queryBool(r *http.Request, key string) (*bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, invalidField(key, "format")
	}
	return &value, nil
}

// asOf reads the as_of query parameter, defaulting to today.
func (h *Handler) asOf(r *http.Request) (date.Date, error) {
	d, err := queryDate(r, "as_of")
	if err != nil || d == nil {
		return h.today(), err
	}
	return *d, nil
}
