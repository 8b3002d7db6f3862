package handlers

import (
	"net/http"

	"ledger/internal/auth"
	"ledger/internal/middleware"
	"ledger/internal/models"
	"ledger/internal/services"
	"ledger/internal/websocket"

	"github.com/go-chi/chi/v5"
)

type walletRequest struct {
	Name           string  `json:"name"`
	WalletType     string  `json:"wallet_type"`
	Currency       string  `json:"currency"`
	InitialBalance *string `json:"initial_balance"`
	Description    string  `json:"description"`
	IsActive       *bool   `json:"is_active"`
}

func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req walletRequest
	if !decode(w, r, &req) {
		return
	}
	balance, err := parseOptionalAmount("initial_balance", req.InitialBalance)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	wallet, err := h.wallets.CreateWallet(r.Context(), actor, services.WalletInput{
		Name:           req.Name,
		Type:           models.WalletType(req.WalletType),
		Currency:       req.Currency,
		InitialBalance: balance,
		Description:    req.Description,
		IsActive:       req.IsActive,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, wallet)
}

func (h *Handler) ListWallets(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	wallets, err := h.wallets.ListWallets(r.Context(), actor.OwnerID, r.URL.Query().Get("active") == "true")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(wallets))
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	wallet, err := h.wallets.GetWallet(r.Context(), actor.OwnerID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

type walletUpdateRequest struct {
	Name        *string `json:"name"`
	WalletType  *string `json:"wallet_type"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
	Adjustment  *string `json:"adjustment"`
}

func (h *Handler) UpdateWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req walletUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	adjustment, err := parseOptionalAmount("adjustment", req.Adjustment)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	input := services.WalletUpdate{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
		Adjustment:  adjustment,
	}
	if req.WalletType != nil {
		walletType := models.WalletType(*req.WalletType)
		input.Type = &walletType
	}
	wallet, err := h.wallets.UpdateWallet(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

func (h *Handler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.wallets.DeleteWallet(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) WalletSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	summary, err := h.wallets.Summary(r.Context(), actor.OwnerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(summary))
}

type transferRequest struct {
	TargetWalletID string `json:"target_wallet_id"`
	Amount         string `json:"amount"`
	Description    string `json:"description"`
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TargetWalletID == "" {
		respondInvalid(w, "target_wallet_id", "required")
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	result, err := h.wallets.Transfer(r.Context(), actor, services.TransferRequest{
		SourceID:    chi.URLParam(r, "id"),
		TargetID:    req.TargetWalletID,
		AmountMinor: amount,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// WSBalances streams balance updates of the token's owner. The token is read
// from the token query value first, then from the bearer header.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r)
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}

// nonNil keeps empty lists as [] in responses.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
