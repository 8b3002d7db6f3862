package store

import (
	"context"

	"ledger/internal/models"

	"github.com/shopspring/decimal"
)

type WalletStore struct {
	db DB
}

// WalletSummary is a wallet with its income and expense flow in the base currency.
type WalletSummary struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Currency     string `db:"currency" json:"currency"`
	Balance      int64  `db:"balance" json:"-"`
	BalanceBase  int64  `db:"balance_base" json:"-"`
	IncomeBase   int64  `db:"income_base" json:"-"`
	ExpenseBase  int64  `db:"expense_base" json:"-"`
	Transactions int64  `db:"transactions" json:"transactions"`
}

const walletColumns = `id, owner_id, name, wallet_type, currency, balance, balance_base, description, is_active, created_at, updated_at`

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

func (s *WalletStore) Create(ctx context.Context, tx Execer, w models.Wallet) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (id, owner_id, name, wallet_type, currency, balance, balance_base, description, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, w.ID, w.OwnerID, w.Name, w.Type, w.Currency, int64(w.Balance), int64(w.BalanceBase), w.Description, w.IsActive)
	return err
}

func (s *WalletStore) Get(ctx context.Context, ownerID, id string) (models.Wallet, error) {
	var row models.Wallet
	err := s.db.GetContext(ctx, &row, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE owner_id = $1 AND id = $2
	`, ownerID, id)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

// GetForUpdate locks the wallet row until the surrounding transaction ends.
func (s *WalletStore) GetForUpdate(ctx context.Context, tx Getter, ownerID, id string) (models.Wallet, error) {
	var row models.Wallet
	err := tx.GetContext(ctx, &row, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE owner_id = $1 AND id = $2
		FOR UPDATE
	`, ownerID, id)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) List(ctx context.Context, ownerID string, activeOnly bool) ([]models.Wallet, error) {
	f := newFilter("owner_id = ?", ownerID)
	if activeOnly {
		f.add("is_active = TRUE")
	}
	var rows []models.Wallet
	err := s.db.SelectContext(ctx, &rows, `SELECT `+walletColumns+` FROM wallets`+f.where()+` ORDER BY name`, f.args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *WalletStore) Update(ctx context.Context, tx Execer, w models.Wallet) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET name = $1, wallet_type = $2, description = $3, is_active = $4, updated_at = NOW()
		WHERE owner_id = $5 AND id = $6
	`, w.Name, w.Type, w.Description, w.IsActive, w.OwnerID, w.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *WalletStore) UpdateBalance(ctx context.Context, tx Execer, id string, balance, balanceBase int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $1, balance_base = $2, updated_at = NOW()
		WHERE id = $3
	`, balance, balanceBase, id)
	return err
}

// RepriceBase recomputes the base mirror of every wallet held in currency.
// rate is units of currency per one base unit.
func (s *WalletStore) RepriceBase(ctx context.Context, tx Execer, currency string, rate decimal.Decimal) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance_base = ROUND(balance::numeric / $1::numeric), updated_at = NOW()
		WHERE currency = $2
	`, rate, currency)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *WalletStore) Delete(ctx context.Context, tx Execer, ownerID, id string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM wallets WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *WalletStore) IsReferenced(ctx context.Context, tx Getter, id string) (bool, error) {
	var used bool
	err := tx.GetContext(ctx, &used, `
		SELECT EXISTS (SELECT 1 FROM ledger_transactions WHERE wallet_id = $1)
		    OR EXISTS (SELECT 1 FROM subscriptions WHERE wallet_id = $1)
		    OR EXISTS (SELECT 1 FROM savings_goals WHERE wallet_id = $1)
	`, id)
	return used, err
}

func (s *WalletStore) Summary(ctx context.Context, ownerID string) ([]WalletSummary, error) {
	var rows []WalletSummary
	err := s.db.SelectContext(ctx, &rows, `
		SELECT w.id,
		       w.name,
		       w.currency,
		       w.balance,
		       w.balance_base,
		       COALESCE(SUM(t.amount_base) FILTER (WHERE t.kind = 'income'), 0) AS income_base,
		       COALESCE(SUM(t.amount_base) FILTER (WHERE t.kind = 'expense'), 0) AS expense_base,
		       COUNT(t.id) AS transactions
		FROM wallets w
		LEFT JOIN ledger_transactions t ON t.wallet_id = w.id
		WHERE w.owner_id = $1 AND w.is_active = TRUE
		GROUP BY w.id, w.name, w.currency, w.balance, w.balance_base
		ORDER BY w.name
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Owners lists every owner holding at least one wallet. Batch jobs iterate it.
func (s *WalletStore) Owners(ctx context.Context) ([]string, error) {
	var owners []string
	err := s.db.SelectContext(ctx, &owners, `SELECT DISTINCT owner_id FROM wallets ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	return owners, nil
}
