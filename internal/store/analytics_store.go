package store

import (
	"context"

	"ledger/internal/date"
	"ledger/internal/models"
)

// AnalyticsStore runs read-only aggregates over ledger_transactions. Every
// sum is in the base currency.
type AnalyticsStore struct {
	db DB
}

type KindTotals struct {
	Income  int64 `db:"income"`
	Expense int64 `db:"expense"`
}

type CategoryTotal struct {
	CategoryID string `db:"category_id"`
	Name       string `db:"name"`
	Total      int64  `db:"total"`
	Count      int64  `db:"count"`
}

type ProjectTotal struct {
	ProjectID string `db:"project_id"`
	Income    int64  `db:"income"`
	Expense   int64  `db:"expense"`
}

type DailyTotal struct {
	Day     date.Date `db:"day"`
	Income  int64     `db:"income"`
	Expense int64     `db:"expense"`
}

type DashboardCounts struct {
	ActiveBudgets     int64 `db:"active_budgets"`
	ActiveGoals       int64 `db:"active_goals"`
	DueSubscriptions  int64 `db:"due_subscriptions"`
	ActiveWallets     int64 `db:"active_wallets"`
	WalletBalanceBase int64 `db:"wallet_balance_base"`
}

func NewAnalyticsStore(db DB) *AnalyticsStore {
	return &AnalyticsStore{db: db}
}

// Totals sums income and expense inside r. A zero range covers all time.
func (s *AnalyticsStore) Totals(ctx context.Context, ownerID string, r date.Range) (KindTotals, error) {
	f := newFilter("owner_id = ?", ownerID)
	if !r.From.IsZero() {
		f.add("date BETWEEN ? AND ?", r.From, r.To)
	}
	var totals KindTotals
	err := s.db.GetContext(ctx, &totals, `
		SELECT COALESCE(SUM(amount_base) FILTER (WHERE kind = 'income'), 0) AS income,
		       COALESCE(SUM(amount_base) FILTER (WHERE kind = 'expense'), 0) AS expense
		FROM ledger_transactions`+f.where(), f.args...)
	return totals, err
}

func (s *AnalyticsStore) CategoryBreakdown(ctx context.Context, ownerID string, kind models.TransactionKind, r date.Range) ([]CategoryTotal, error) {
	var rows []CategoryTotal
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.category_id, c.name, SUM(t.amount_base) AS total, COUNT(*) AS count
		FROM ledger_transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.owner_id = $1 AND t.kind = $2 AND t.date BETWEEN $3 AND $4
		GROUP BY t.category_id, c.name
		ORDER BY total DESC, c.name
	`, ownerID, kind, r.From, r.To)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Top returns the largest records of kind inside r by base amount.
func (s *AnalyticsStore) Top(ctx context.Context, ownerID string, kind models.TransactionKind, r date.Range, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM ledger_transactions
		WHERE owner_id = $1 AND kind = $2 AND date BETWEEN $3 AND $4
		ORDER BY amount_base DESC, date DESC
		LIMIT $5
	`, ownerID, kind, r.From, r.To, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AnalyticsStore) ProjectTotals(ctx context.Context, ownerID string) ([]ProjectTotal, error) {
	var rows []ProjectTotal
	err := s.db.SelectContext(ctx, &rows, `
		SELECT project_id,
		       COALESCE(SUM(amount_base) FILTER (WHERE kind = 'income'), 0) AS income,
		       COALESCE(SUM(amount_base) FILTER (WHERE kind = 'expense'), 0) AS expense
		FROM ledger_transactions
		WHERE owner_id = $1 AND project_id IS NOT NULL
		GROUP BY project_id
		ORDER BY project_id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DailyTotals returns one row per day with activity inside r.
func (s *AnalyticsStore) DailyTotals(ctx context.Context, ownerID string, r date.Range) ([]DailyTotal, error) {
	var rows []DailyTotal
	err := s.db.SelectContext(ctx, &rows, `
		SELECT date AS day,
		       COALESCE(SUM(amount_base) FILTER (WHERE kind = 'income'), 0) AS income,
		       COALESCE(SUM(amount_base) FILTER (WHERE kind = 'expense'), 0) AS expense
		FROM ledger_transactions
		WHERE owner_id = $1 AND date BETWEEN $2 AND $3
		GROUP BY date
		ORDER BY date
	`, ownerID, r.From, r.To)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Counts gathers the dashboard counters. Subscriptions count as due when
// billed within [today, dueBy].
func (s *AnalyticsStore) Counts(ctx context.Context, ownerID string, today, dueBy date.Date) (DashboardCounts, error) {
	var counts DashboardCounts
	err := s.db.GetContext(ctx, &counts, `
		SELECT (SELECT COUNT(*) FROM budgets
		         WHERE owner_id = $1 AND is_active = TRUE AND start_date <= $2 AND end_date >= $2) AS active_budgets,
		       (SELECT COUNT(*) FROM savings_goals WHERE owner_id = $1 AND status = 'active') AS active_goals,
		       (SELECT COUNT(*) FROM subscriptions
		         WHERE owner_id = $1 AND status = 'active' AND next_billing_date BETWEEN $2 AND $3) AS due_subscriptions,
		       (SELECT COUNT(*) FROM wallets WHERE owner_id = $1 AND is_active = TRUE) AS active_wallets,
		       (SELECT COALESCE(SUM(balance_base), 0) FROM wallets
		         WHERE owner_id = $1 AND is_active = TRUE) AS wallet_balance_base
	`, ownerID, today, dueBy)
	return counts, err
}
