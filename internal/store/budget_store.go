package store

import (
	"context"

	"ledger/internal/date"
	"ledger/internal/models"
)

type BudgetStore struct {
	db DB
}

const budgetColumns = `id, owner_id, name, budget_type, project_id, category_id, amount, currency, start_date, end_date,
	alert_threshold, description, is_active, created_at, updated_at`

func NewBudgetStore(db DB) *BudgetStore {
	return &BudgetStore{db: db}
}

func (s *BudgetStore) Create(ctx context.Context, tx Execer, b models.Budget) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO budgets (id, owner_id, name, budget_type, project_id, category_id, amount, currency,
			start_date, end_date, alert_threshold, description, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, b.ID, b.OwnerID, b.Name, b.Type, b.ProjectID, b.CategoryID, int64(b.Amount), b.Currency,
		b.StartDate, b.EndDate, b.AlertThreshold, b.Description, b.IsActive)
	return err
}

func (s *BudgetStore) Get(ctx context.Context, ownerID, id string) (models.Budget, error) {
	var row models.Budget
	err := s.db.GetContext(ctx, &row, `SELECT `+budgetColumns+` FROM budgets WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return models.Budget{}, err
	}
	return row, nil
}

func (s *BudgetStore) List(ctx context.Context, ownerID string, activeOnly bool) ([]models.Budget, error) {
	f := newFilter("owner_id = ?", ownerID)
	if activeOnly {
		f.add("is_active = TRUE")
	}
	var rows []models.Budget
	err := s.db.SelectContext(ctx, &rows, `SELECT `+budgetColumns+` FROM budgets`+f.where()+` ORDER BY start_date DESC, name`, f.args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListCurrent returns active budgets whose window contains today.
func (s *BudgetStore) ListCurrent(ctx context.Context, ownerID string, today date.Date) ([]models.Budget, error) {
	var rows []models.Budget
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+budgetColumns+`
		FROM budgets
		WHERE owner_id = $1 AND is_active = TRUE AND start_date <= $2 AND end_date >= $2
		ORDER BY end_date, name
	`, ownerID, today)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *BudgetStore) Update(ctx context.Context, tx Execer, b models.Budget) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE budgets
		SET name = $1, budget_type = $2, project_id = $3, category_id = $4, amount = $5, currency = $6,
		    start_date = $7, end_date = $8, alert_threshold = $9, description = $10, is_active = $11, updated_at = NOW()
		WHERE owner_id = $12 AND id = $13
	`, b.Name, b.Type, b.ProjectID, b.CategoryID, int64(b.Amount), b.Currency,
		b.StartDate, b.EndDate, b.AlertThreshold, b.Description, b.IsActive, b.OwnerID, b.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *BudgetStore) Delete(ctx context.Context, tx Execer, ownerID, id string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CurrencyTotal is one currency's share of a budget's spending, in the
// native amount and in the base amount fixed at write time.
type CurrencyTotal struct {
	Currency  string `db:"currency"`
	Total     int64  `db:"total"`
	TotalBase int64  `db:"total_base"`
}

// Spent sums the expenses inside the budget window per currency, narrowed by
// project or category for bound budgets.
func (s *BudgetStore) Spent(ctx context.Context, b models.Budget) ([]CurrencyTotal, error) {
	f := newFilter("owner_id = ?", b.OwnerID)
	f.add("kind = 'expense'")
	f.add("date BETWEEN ? AND ?", b.StartDate, b.EndDate)
	switch b.Type {
	case models.BudgetProject:
		f.add("project_id = ?", derefStringPtr(b.ProjectID))
	case models.BudgetCategory:
		f.add("category_id = ?", derefStringPtr(b.CategoryID))
	}
	var rows []CurrencyTotal
	err := s.db.SelectContext(ctx, &rows, `SELECT currency, SUM(amount) AS total, SUM(amount_base) AS total_base FROM ledger_transactions`+
		f.where()+` GROUP BY currency ORDER BY currency`, f.args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
