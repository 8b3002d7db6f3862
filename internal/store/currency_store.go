package store

import (
	"context"

	"ledger/internal/models"

	"github.com/shopspring/decimal"
)

type CurrencyStore struct {
	db DB
}

const currencyColumns = `code, name, symbol, exchange_rate_to_base, is_default, is_active, updated_at`

func NewCurrencyStore(db DB) *CurrencyStore {
	return &CurrencyStore{db: db}
}

func (s *CurrencyStore) Create(ctx context.Context, tx Execer, c models.Currency) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO currencies (code, name, symbol, exchange_rate_to_base, is_default, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.Code, c.Name, c.Symbol, c.RateToBase, c.IsDefault, c.IsActive)
	return err
}

func (s *CurrencyStore) Get(ctx context.Context, code string) (models.Currency, error) {
	var row models.Currency
	err := s.db.GetContext(ctx, &row, `SELECT `+currencyColumns+` FROM currencies WHERE code = $1`, code)
	if err != nil {
		return models.Currency{}, err
	}
	return row, nil
}

// GetTx reads a currency inside a running transaction.
func (s *CurrencyStore) GetTx(ctx context.Context, tx Getter, code string) (models.Currency, error) {
	var row models.Currency
	err := tx.GetContext(ctx, &row, `SELECT `+currencyColumns+` FROM currencies WHERE code = $1`, code)
	if err != nil {
		return models.Currency{}, err
	}
	return row, nil
}

func (s *CurrencyStore) GetDefault(ctx context.Context) (models.Currency, error) {
	var row models.Currency
	err := s.db.GetContext(ctx, &row, `SELECT `+currencyColumns+` FROM currencies WHERE is_default = TRUE`)
	if err != nil {
		return models.Currency{}, err
	}
	return row, nil
}

func (s *CurrencyStore) List(ctx context.Context, activeOnly bool) ([]models.Currency, error) {
	query := `SELECT ` + currencyColumns + ` FROM currencies`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY code`
	var rows []models.Currency
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *CurrencyStore) Update(ctx context.Context, tx Execer, c models.Currency) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE currencies
		SET name = $1, symbol = $2, exchange_rate_to_base = $3, is_active = $4, updated_at = NOW()
		WHERE code = $5
	`, c.Name, c.Symbol, c.RateToBase, c.IsActive, c.Code)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *CurrencyStore) Delete(ctx context.Context, tx Execer, code string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM currencies WHERE code = $1`, code)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IsReferenced reports whether any wallet, budget, subscription or
// transaction still uses the currency.
func (s *CurrencyStore) IsReferenced(ctx context.Context, tx Getter, code string) (bool, error) {
	var used bool
	err := tx.GetContext(ctx, &used, `
		SELECT EXISTS (SELECT 1 FROM wallets WHERE currency = $1)
		    OR EXISTS (SELECT 1 FROM budgets WHERE currency = $1)
		    OR EXISTS (SELECT 1 FROM subscriptions WHERE currency = $1)
		    OR EXISTS (SELECT 1 FROM ledger_transactions WHERE currency = $1)
	`, code)
	return used, err
}

// MakeDefault moves the default flag to code and pins its rate to 1. Every
// other rate was quoted against the old base and is cleared until the next
// refresh.
func (s *CurrencyStore) MakeDefault(ctx context.Context, tx Execer, code string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		UPDATE currencies SET is_default = FALSE, exchange_rate_to_base = NULL, updated_at = NOW()
		WHERE code <> $1
	`, code); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE currencies
		SET is_default = TRUE, exchange_rate_to_base = 1, updated_at = NOW()
		WHERE code = $1
	`, code)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetRate writes a new rate only when it differs from the stored one and
// reports whether a row changed.
func (s *CurrencyStore) SetRate(ctx context.Context, tx Execer, code string, rate decimal.Decimal) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE currencies
		SET exchange_rate_to_base = $1, updated_at = NOW()
		WHERE code = $2 AND exchange_rate_to_base IS DISTINCT FROM $1
	`, rate, code)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}
