package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"ledger/internal/db"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/store"
	"ledger/internal/validator"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type CurrencyStore interface {
	Create(ctx context.Context, tx store.Execer, c models.Currency) error
	Get(ctx context.Context, code string) (models.Currency, error)
	GetTx(ctx context.Context, tx store.Getter, code string) (models.Currency, error)
	List(ctx context.Context, activeOnly bool) ([]models.Currency, error)
	Update(ctx context.Context, tx store.Execer, c models.Currency) (int64, error)
	Delete(ctx context.Context, tx store.Execer, code string) (int64, error)
	IsReferenced(ctx context.Context, tx store.Getter, code string) (bool, error)
	MakeDefault(ctx context.Context, tx store.Execer, code string) (int64, error)
}

// BaseRepricer recomputes the base mirror of wallets held in a currency.
type BaseRepricer interface {
	RepriceBase(ctx context.Context, tx store.Execer, currency string, rate decimal.Decimal) (int64, error)
}

type RateService interface {
	Converter
	RefreshAll(ctx context.Context) (int, error)
}

// CurrencyService manages the shared currency directory.
type CurrencyService struct {
	txRunner   db.TxRunner
	currencies CurrencyStore
	wallets    BaseRepricer
	rates      RateService
	history    HistoryStore
}

func NewCurrencyService(txRunner db.TxRunner, currencies CurrencyStore, wallets BaseRepricer, rates RateService, history HistoryStore) *CurrencyService {
	return &CurrencyService{txRunner: txRunner, currencies: currencies, wallets: wallets, rates: rates, history: history}
}

type CurrencyInput struct {
	Code     string
	Name     string
	Symbol   string
	Rate     *decimal.Decimal
	IsActive *bool
}

// Create adds a currency. Name and symbol default from the ISO table when
// the code is known there.
func (s *CurrencyService) Create(ctx context.Context, actor Actor, input CurrencyInput) (models.Currency, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if err := validator.ValidateCurrencyCode(code); err != nil {
		return models.Currency{}, invalid("code", "format")
	}
	if input.Rate != nil && !input.Rate.IsPositive() {
		return models.Currency{}, invalid("exchange_rate_to_base", "positive")
	}
	cur := models.Currency{
		Code:     code,
		Name:     strings.TrimSpace(input.Name),
		Symbol:   strings.TrimSpace(input.Symbol),
		IsActive: input.IsActive == nil || *input.IsActive,
	}
	if info, ok := money.LookupCurrency(code); ok && cur.Symbol == "" {
		cur.Symbol = info.Symbol
	}
	if cur.Name == "" {
		cur.Name = code
	}
	if cur.Symbol == "" {
		cur.Symbol = code
	}
	if input.Rate != nil {
		cur.RateToBase = decimal.NewNullDecimal(*input.Rate)
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.currencies.Create(ctx, tx, cur); err != nil {
			return conflict(err, nil)
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionCreate, "currency", code, nil, &cur, "Created currency "+code)
	})
	if err != nil {
		return models.Currency{}, err
	}
	return cur, nil
}

func (s *CurrencyService) Get(ctx context.Context, code string) (models.Currency, error) {
	cur, err := s.currencies.Get(ctx, strings.ToUpper(code))
	return cur, lookup(err)
}

func (s *CurrencyService) List(ctx context.Context, activeOnly bool) ([]models.Currency, error) {
	return s.currencies.List(ctx, activeOnly)
}

type CurrencyUpdate struct {
	Name     *string
	Symbol   *string
	Rate     *decimal.Decimal
	IsActive *bool
}

func (s *CurrencyService) Update(ctx context.Context, actor Actor, code string, input CurrencyUpdate) (models.Currency, error) {
	code = strings.ToUpper(code)
	if input.Name != nil && validator.ValidateName(*input.Name) != nil {
		return models.Currency{}, invalid("name", "required")
	}
	if input.Rate != nil && !input.Rate.IsPositive() {
		return models.Currency{}, invalid("exchange_rate_to_base", "positive")
	}
	var updated models.Currency
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.currencies.GetTx(ctx, tx, code)
		if err != nil {
			return lookup(err)
		}
		updated = before
		if input.Name != nil {
			updated.Name = strings.TrimSpace(*input.Name)
		}
		if input.Symbol != nil {
			updated.Symbol = strings.TrimSpace(*input.Symbol)
		}
		if input.Rate != nil && !before.IsDefault {
			updated.RateToBase = decimal.NewNullDecimal(*input.Rate)
		}
		if input.IsActive != nil {
			if before.IsDefault && !*input.IsActive {
				return ErrDefaultCurrency
			}
			updated.IsActive = *input.IsActive
		}
		if _, err := s.currencies.Update(ctx, tx, updated); err != nil {
			return err
		}
		if rateChanged(before.RateToBase, updated.RateToBase) {
			if _, err := s.wallets.RepriceBase(ctx, tx, code, updated.RateToBase.Decimal); err != nil {
				return err
			}
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionUpdate, "currency", code, &before, &updated, "Updated currency "+code)
	})
	if err != nil {
		return models.Currency{}, err
	}
	return updated, nil
}

func (s *CurrencyService) Delete(ctx context.Context, actor Actor, code string) error {
	code = strings.ToUpper(code)
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.currencies.GetTx(ctx, tx, code)
		if err != nil {
			return lookup(err)
		}
		if before.IsDefault {
			return ErrDefaultCurrency
		}
		used, err := s.currencies.IsReferenced(ctx, tx, code)
		if err != nil {
			return err
		}
		if used {
			return ErrCurrencyInUse
		}
		if _, err := s.currencies.Delete(ctx, tx, code); err != nil {
			return conflict(err, ErrCurrencyInUse)
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionDelete, "currency", code, &before, nil, "Deleted currency "+code)
	})
}

// SetDefault makes code the base currency. Wallets held in it are repriced
// at 1 and every other rate is cleared in the same transaction, so writes in
// those currencies fail with ErrRateUnavailable until a refresh succeeds. The
// refresh is attempted right away; its failure is logged and leaves the
// switch in place.
func (s *CurrencyService) SetDefault(ctx context.Context, actor Actor, code string) (models.Currency, error) {
	code = strings.ToUpper(code)
	var updated models.Currency
	switched := false
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.currencies.GetTx(ctx, tx, code)
		if err != nil {
			return lookup(err)
		}
		updated = before
		if before.IsDefault {
			return nil
		}
		if !before.IsActive {
			return invalid("code", "inactive")
		}
		if _, err := s.currencies.MakeDefault(ctx, tx, code); err != nil {
			return err
		}
		one := decimal.NewFromInt(1)
		if _, err := s.wallets.RepriceBase(ctx, tx, code, one); err != nil {
			return err
		}
		updated.IsDefault = true
		updated.RateToBase = decimal.NewNullDecimal(one)
		switched = true
		return recordHistory(ctx, tx, s.history, actor, models.ActionUpdate, "currency", code, &before, &updated, "Set default currency "+code)
	})
	if err != nil {
		return models.Currency{}, err
	}
	if !switched {
		return updated, nil
	}
	if _, err := s.rates.RefreshAll(ctx); err != nil {
		log.Printf("refresh after default change to %s failed: %v", code, err)
	}
	return updated, nil
}

func rateChanged(before, after decimal.NullDecimal) bool {
	if before.Valid != after.Valid {
		return true
	}
	return after.Valid && !before.Decimal.Equal(after.Decimal)
}

func (s *CurrencyService) RefreshRates(ctx context.Context) (int, error) {
	return s.rates.RefreshAll(ctx)
}

type LiveQuote struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    money.Amount    `json:"amount"`
	Converted money.Amount    `json:"converted_amount"`
	Rate      decimal.Decimal `json:"rate"`
}

// LiveRate quotes amountMinor of from in to at the current provider rate.
func (s *CurrencyService) LiveRate(ctx context.Context, from, to string, amountMinor int64) (LiveQuote, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if validator.ValidateCurrencyCode(from) != nil {
		return LiveQuote{}, invalid("from", "format")
	}
	if validator.ValidateCurrencyCode(to) != nil {
		return LiveQuote{}, invalid("to", "format")
	}
	if amountMinor < 0 {
		return LiveQuote{}, invalid("amount", "negative")
	}
	converted, rate, err := s.rates.Convert(ctx, amountMinor, from, to)
	if err != nil {
		return LiveQuote{}, err
	}
	return LiveQuote{From: from, To: to, Amount: money.Amount(amountMinor), Converted: money.Amount(converted), Rate: rate}, nil
}

// knownCurrency reports whether code exists and is active.
func knownCurrency(ctx context.Context, currencies CurrencyReader, tx store.Getter, code string) error {
	cur, err := currencies.GetTx(ctx, tx, code)
	if err != nil {
		if errors.Is(lookup(err), ErrNotFound) {
			return invalid("currency", "unknown")
		}
		return err
	}
	if !cur.IsActive {
		return invalid("currency", "inactive")
	}
	return nil
}
