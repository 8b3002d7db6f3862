package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ledger/internal/db"
	"ledger/internal/exchange"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/store"
	"ledger/internal/validator"
	"ledger/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type WalletStore interface {
	Create(ctx context.Context, tx store.Execer, w models.Wallet) error
	Get(ctx context.Context, ownerID, id string) (models.Wallet, error)
	GetForUpdate(ctx context.Context, tx store.Getter, ownerID, id string) (models.Wallet, error)
	List(ctx context.Context, ownerID string, activeOnly bool) ([]models.Wallet, error)
	Update(ctx context.Context, tx store.Execer, w models.Wallet) (int64, error)
	UpdateBalance(ctx context.Context, tx store.Execer, id string, balance, balanceBase int64) error
	Delete(ctx context.Context, tx store.Execer, ownerID, id string) (int64, error)
	IsReferenced(ctx context.Context, tx store.Getter, id string) (bool, error)
	Summary(ctx context.Context, ownerID string) ([]store.WalletSummary, error)
}

type CurrencyReader interface {
	Get(ctx context.Context, code string) (models.Currency, error)
	GetTx(ctx context.Context, tx store.Getter, code string) (models.Currency, error)
}

type Converter interface {
	Convert(ctx context.Context, amountMinor int64, from, to string) (int64, decimal.Decimal, error)
}

type BalanceHub interface {
	BroadcastBalance(ownerID string, update websocket.BalanceUpdate)
}

// WalletLedger is the only code that writes wallet balances. Callers pass a
// wallet they locked in the current transaction.
type WalletLedger struct {
	wallets        WalletStore
	currencies     CurrencyReader
	allowOverdraft bool
}

func NewWalletLedger(wallets WalletStore, currencies CurrencyReader, allowOverdraft bool) *WalletLedger {
	return &WalletLedger{wallets: wallets, currencies: currencies, allowOverdraft: allowOverdraft}
}

// Lock reads the wallet FOR UPDATE.
func (l *WalletLedger) Lock(ctx context.Context, tx store.Getter, ownerID, walletID string) (models.Wallet, error) {
	w, err := l.wallets.GetForUpdate(ctx, tx, ownerID, walletID)
	if err != nil {
		return models.Wallet{}, lookup(err)
	}
	return w, nil
}

// LockPair locks two wallets in id order so concurrent transfers in opposite
// directions cannot deadlock. The results follow the argument order.
func (l *WalletLedger) LockPair(ctx context.Context, tx store.Getter, ownerID, firstID, secondID string) (models.Wallet, models.Wallet, error) {
	leftID, rightID := orderedIDs(firstID, secondID)
	left, err := l.Lock(ctx, tx, ownerID, leftID)
	if err != nil {
		return models.Wallet{}, models.Wallet{}, err
	}
	right, err := l.Lock(ctx, tx, ownerID, rightID)
	if err != nil {
		return models.Wallet{}, models.Wallet{}, err
	}
	if firstID == leftID {
		return left, right, nil
	}
	return right, left, nil
}

// Apply adds delta to the locked wallet, refreshes its base mirror and
// persists both. w is updated in place.
func (l *WalletLedger) Apply(ctx context.Context, tx *sqlx.Tx, w *models.Wallet, delta int64) error {
	balance := int64(w.Balance) + delta
	if (delta > 0 && balance < int64(w.Balance)) || (delta < 0 && balance > int64(w.Balance)) {
		return invalid("amount", "too_large")
	}
	if balance < 0 && delta < 0 && !l.allowOverdraft {
		return ErrInsufficientBalance
	}
	cur, err := l.currencies.GetTx(ctx, tx, w.Currency)
	if err != nil {
		return fmt.Errorf("currency %s: %w", w.Currency, lookup(err))
	}
	base, err := exchange.BaseAmount(balance, cur)
	if err != nil {
		return err
	}
	if err := l.wallets.UpdateBalance(ctx, tx, w.ID, balance, base); err != nil {
		return err
	}
	w.Balance = money.Amount(balance)
	w.BalanceBase = money.Amount(base)
	return nil
}

func publish(hub BalanceHub, ownerID string, wallets ...models.Wallet) {
	if hub == nil {
		return
	}
	for _, w := range wallets {
		hub.BroadcastBalance(ownerID, websocket.BalanceUpdate{
			WalletID:    w.ID,
			Balance:     w.Balance.String(),
			BalanceBase: w.BalanceBase.String(),
			Currency:    w.Currency,
		})
	}
}

func orderedIDs(firstID, secondID string) (string, string) {
	if firstID <= secondID {
		return firstID, secondID
	}
	return secondID, firstID
}

// LedgerService manages wallets and transfers between them.
type LedgerService struct {
	txRunner db.TxRunner
	ledger   *WalletLedger
	wallets  WalletStore
	rates    Converter
	history  HistoryStore
	hub      BalanceHub
}

func NewLedgerService(txRunner db.TxRunner, ledger *WalletLedger, wallets WalletStore, rates Converter, history HistoryStore, hub BalanceHub) *LedgerService {
	return &LedgerService{txRunner: txRunner, ledger: ledger, wallets: wallets, rates: rates, history: history, hub: hub}
}

type WalletInput struct {
	Name           string
	Type           models.WalletType
	Currency       string
	InitialBalance int64
	Description    string
	IsActive       *bool
}

func (s *LedgerService) CreateWallet(ctx context.Context, actor Actor, input WalletInput) (models.Wallet, error) {
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if input.Type == "" {
		input.Type = models.WalletCurrent
	}
	if err := validator.ValidateName(input.Name); err != nil {
		return models.Wallet{}, invalid("name", "required")
	}
	if !input.Type.Valid() {
		return models.Wallet{}, invalid("wallet_type", "unknown")
	}
	if err := validator.ValidateCurrencyCode(input.Currency); err != nil {
		return models.Wallet{}, invalid("currency", "format")
	}
	if input.InitialBalance < 0 && !s.ledger.allowOverdraft {
		return models.Wallet{}, invalid("initial_balance", "negative")
	}
	wallet := models.Wallet{
		ID:          uuid.NewString(),
		OwnerID:     actor.OwnerID,
		Name:        strings.TrimSpace(input.Name),
		Type:        input.Type,
		Currency:    input.Currency,
		Description: input.Description,
		IsActive:    input.IsActive == nil || *input.IsActive,
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := s.ledger.currencies.GetTx(ctx, tx, wallet.Currency)
		if err != nil {
			if errors.Is(lookup(err), ErrNotFound) {
				return invalid("currency", "unknown")
			}
			return err
		}
		if !cur.IsActive {
			return invalid("currency", "inactive")
		}
		base, err := exchange.BaseAmount(input.InitialBalance, cur)
		if err != nil {
			return err
		}
		wallet.Balance = money.Amount(input.InitialBalance)
		wallet.BalanceBase = money.Amount(base)
		if err := s.wallets.Create(ctx, tx, wallet); err != nil {
			return conflict(err, nil)
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionCreate, "wallet", wallet.ID, nil, &wallet, "Created wallet "+wallet.Name)
	})
	if err != nil {
		return models.Wallet{}, err
	}
	return wallet, nil
}

type WalletUpdate struct {
	Name        *string
	Type        *models.WalletType
	Description *string
	IsActive    *bool
	// Adjustment is a signed correction applied through the ledger.
	Adjustment int64
}

func (s *LedgerService) UpdateWallet(ctx context.Context, actor Actor, id string, input WalletUpdate) (models.Wallet, error) {
	if input.Name != nil && validator.ValidateName(*input.Name) != nil {
		return models.Wallet{}, invalid("name", "required")
	}
	if input.Type != nil && !input.Type.Valid() {
		return models.Wallet{}, invalid("wallet_type", "unknown")
	}
	var updated models.Wallet
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.ledger.Lock(ctx, tx, actor.OwnerID, id)
		if err != nil {
			return err
		}
		updated = before
		if input.Name != nil {
			updated.Name = strings.TrimSpace(*input.Name)
		}
		if input.Type != nil {
			updated.Type = *input.Type
		}
		if input.Description != nil {
			updated.Description = *input.Description
		}
		if input.IsActive != nil {
			updated.IsActive = *input.IsActive
		}
		if _, err := s.wallets.Update(ctx, tx, updated); err != nil {
			return err
		}
		if input.Adjustment != 0 {
			if err := s.ledger.Apply(ctx, tx, &updated, input.Adjustment); err != nil {
				return err
			}
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionUpdate, "wallet", id, &before, &updated, "Updated wallet "+updated.Name)
	})
	if err != nil {
		return models.Wallet{}, err
	}
	if input.Adjustment != 0 {
		publish(s.hub, actor.OwnerID, updated)
	}
	return updated, nil
}

func (s *LedgerService) DeleteWallet(ctx context.Context, actor Actor, id string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.ledger.Lock(ctx, tx, actor.OwnerID, id)
		if err != nil {
			return err
		}
		used, err := s.wallets.IsReferenced(ctx, tx, id)
		if err != nil {
			return err
		}
		if used {
			return ErrWalletInUse
		}
		if _, err := s.wallets.Delete(ctx, tx, actor.OwnerID, id); err != nil {
			return conflict(err, ErrWalletInUse)
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionDelete, "wallet", id, &before, nil, "Deleted wallet "+before.Name)
	})
}

func (s *LedgerService) GetWallet(ctx context.Context, ownerID, id string) (models.Wallet, error) {
	w, err := s.wallets.Get(ctx, ownerID, id)
	return w, lookup(err)
}

func (s *LedgerService) ListWallets(ctx context.Context, ownerID string, activeOnly bool) ([]models.Wallet, error) {
	return s.wallets.List(ctx, ownerID, activeOnly)
}

type WalletSummary struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Currency     string       `json:"currency"`
	Balance      money.Amount `json:"balance"`
	BalanceBase  money.Amount `json:"balance_base"`
	TotalIncome  money.Amount `json:"total_income"`
	TotalExpense money.Amount `json:"total_expense"`
	NetFlow      money.Amount `json:"net_flow"`
	Transactions int64        `json:"transactions"`
}

// Summary reports each active wallet's flows in the base currency.
func (s *LedgerService) Summary(ctx context.Context, ownerID string) ([]WalletSummary, error) {
	rows, err := s.wallets.Summary(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]WalletSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, WalletSummary{
			ID:           row.ID,
			Name:         row.Name,
			Currency:     row.Currency,
			Balance:      money.Amount(row.Balance),
			BalanceBase:  money.Amount(row.BalanceBase),
			TotalIncome:  money.Amount(row.IncomeBase),
			TotalExpense: money.Amount(row.ExpenseBase),
			NetFlow:      money.Amount(row.IncomeBase - row.ExpenseBase),
			Transactions: row.Transactions,
		})
	}
	return out, nil
}

type TransferRequest struct {
	SourceID    string
	TargetID    string
	AmountMinor int64
	Description string
}

type TransferResult struct {
	Source    models.Wallet   `json:"source"`
	Target    models.Wallet   `json:"target"`
	Amount    money.Amount    `json:"amount"`
	Converted money.Amount    `json:"converted_amount"`
	Rate      decimal.Decimal `json:"rate"`
}

// transferRecord is the audit snapshot of a transfer.
type transferRecord struct {
	SourceID       string          `json:"source_wallet_id"`
	TargetID       string          `json:"target_wallet_id"`
	Amount         money.Amount    `json:"amount"`
	SourceCurrency string          `json:"source_currency"`
	Converted      money.Amount    `json:"converted_amount"`
	TargetCurrency string          `json:"target_currency"`
	Rate           decimal.Decimal `json:"rate"`
	Description    string          `json:"description,omitempty"`
}

// Transfer moves money between two wallets of the owner. The source must
// cover the amount; wallets in different currencies convert at the live
// rate. Exactly one transfer audit row is written on success.
func (s *LedgerService) Transfer(ctx context.Context, actor Actor, req TransferRequest) (TransferResult, error) {
	if req.AmountMinor <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}
	if req.SourceID == req.TargetID {
		return TransferResult{}, ErrSameWalletTransfer
	}
	source, err := s.wallets.Get(ctx, actor.OwnerID, req.SourceID)
	if err != nil {
		return TransferResult{}, lookup(err)
	}
	target, err := s.wallets.Get(ctx, actor.OwnerID, req.TargetID)
	if err != nil {
		if errors.Is(lookup(err), ErrNotFound) {
			return TransferResult{}, ErrTargetNotFound
		}
		return TransferResult{}, err
	}
	converted, rate, err := s.rates.Convert(ctx, req.AmountMinor, source.Currency, target.Currency)
	if err != nil {
		return TransferResult{}, err
	}

	var result TransferResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		source, target, err := s.ledger.LockPair(ctx, tx, actor.OwnerID, req.SourceID, req.TargetID)
		if err != nil {
			return err
		}
		if int64(source.Balance) < req.AmountMinor {
			return ErrInsufficientBalance
		}
		if err := s.ledger.Apply(ctx, tx, &source, -req.AmountMinor); err != nil {
			return err
		}
		if err := s.ledger.Apply(ctx, tx, &target, converted); err != nil {
			return err
		}
		record := transferRecord{
			SourceID:       source.ID,
			TargetID:       target.ID,
			Amount:         money.Amount(req.AmountMinor),
			SourceCurrency: source.Currency,
			Converted:      money.Amount(converted),
			TargetCurrency: target.Currency,
			Rate:           rate,
			Description:    req.Description,
		}
		description := fmt.Sprintf("Transferred %s from %s to %s", money.Label(req.AmountMinor, source.Currency), source.Name, target.Name)
		if err := recordHistory[transferRecord](ctx, tx, s.history, actor, models.ActionTransfer, "wallet", source.ID, nil, &record, description); err != nil {
			return err
		}
		result = TransferResult{Source: source, Target: target, Amount: money.Amount(req.AmountMinor), Converted: money.Amount(converted), Rate: rate}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	publish(s.hub, actor.OwnerID, result.Source, result.Target)
	return result, nil
}
