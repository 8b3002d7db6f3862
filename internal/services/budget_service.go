package services

import (
	"context"
	"errors"
	"strings"

	"ledger/internal/date"
	"ledger/internal/db"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/store"
	"ledger/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BudgetStore interface {
	Create(ctx context.Context, tx store.Execer, b models.Budget) error
	Get(ctx context.Context, ownerID, id string) (models.Budget, error)
	List(ctx context.Context, ownerID string, activeOnly bool) ([]models.Budget, error)
	ListCurrent(ctx context.Context, ownerID string, today date.Date) ([]models.Budget, error)
	Update(ctx context.Context, tx store.Execer, b models.Budget) (int64, error)
	Delete(ctx context.Context, tx store.Execer, ownerID, id string) (int64, error)
	Spent(ctx context.Context, b models.Budget) ([]store.CurrencyTotal, error)
}

// BudgetService tracks spending limits. Usage is derived from the ledger on
// every read.
type BudgetService struct {
	txRunner   db.TxRunner
	budgets    BudgetStore
	categories CategoryReader
	currencies CurrencyReader
	rates      BaseConverter
	history    HistoryStore
}

func NewBudgetService(txRunner db.TxRunner, budgets BudgetStore, categories CategoryReader, currencies CurrencyReader, rates BaseConverter, history HistoryStore) *BudgetService {
	return &BudgetService{txRunner: txRunner, budgets: budgets, categories: categories, currencies: currencies, rates: rates, history: history}
}

type BudgetInput struct {
	Name           string
	Type           models.BudgetType
	ProjectID      *string
	CategoryID     *string
	AmountMinor    int64
	Currency       string
	StartDate      date.Date
	EndDate        date.Date
	AlertThreshold *int
	Description    string
	IsActive       *bool
}

func (in *BudgetInput) validate() error {
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.ProjectID = emptyToNil(in.ProjectID)
	in.CategoryID = emptyToNil(in.CategoryID)
	if validator.ValidateName(in.Name) != nil {
		return invalid("name", "required")
	}
	switch in.Type {
	case models.BudgetMonthly:
		in.ProjectID, in.CategoryID = nil, nil
	case models.BudgetProject:
		if in.ProjectID == nil {
			return invalid("project_id", "required")
		}
		in.CategoryID = nil
	case models.BudgetCategory:
		if in.CategoryID == nil {
			return invalid("category_id", "required")
		}
		in.ProjectID = nil
	default:
		return invalid("budget_type", "unknown")
	}
	if in.AmountMinor < 0 {
		return invalid("amount", "negative")
	}
	if validator.ValidateCurrencyCode(in.Currency) != nil {
		return invalid("currency", "format")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return invalid("start_date", "required")
	}
	if !in.StartDate.Before(in.EndDate) {
		return invalid("end_date", "before_start_date")
	}
	if in.AlertThreshold != nil && validator.ValidateThreshold(*in.AlertThreshold) != nil {
		return invalid("alert_threshold", "range")
	}
	return nil
}

func (in BudgetInput) apply(b *models.Budget) {
	b.Name = strings.TrimSpace(in.Name)
	b.Type = in.Type
	b.ProjectID = in.ProjectID
	b.CategoryID = in.CategoryID
	b.Amount = money.Amount(in.AmountMinor)
	b.Currency = in.Currency
	b.StartDate = in.StartDate
	b.EndDate = in.EndDate
	b.Description = in.Description
	if in.AlertThreshold != nil {
		b.AlertThreshold = *in.AlertThreshold
	}
	if in.IsActive != nil {
		b.IsActive = *in.IsActive
	}
}

func (s *BudgetService) Create(ctx context.Context, actor Actor, input BudgetInput) (models.BudgetStatus, error) {
	if err := input.validate(); err != nil {
		return models.BudgetStatus{}, err
	}
	b := models.Budget{ID: uuid.NewString(), OwnerID: actor.OwnerID, AlertThreshold: 80, IsActive: true}
	input.apply(&b)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.checkBindings(ctx, tx, b); err != nil {
			return err
		}
		if err := s.budgets.Create(ctx, tx, b); err != nil {
			return conflict(err, nil)
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionCreate, "budget", b.ID, nil, &b, "Created budget "+b.Name)
	})
	if err != nil {
		return models.BudgetStatus{}, err
	}
	return s.Evaluate(ctx, b)
}

func (s *BudgetService) checkBindings(ctx context.Context, tx *sqlx.Tx, b models.Budget) error {
	if err := knownCurrency(ctx, s.currencies, tx, b.Currency); err != nil {
		return err
	}
	if b.CategoryID == nil {
		return nil
	}
	category, err := s.categories.GetTx(ctx, tx, b.OwnerID, *b.CategoryID)
	if err != nil {
		if errors.Is(lookup(err), ErrNotFound) {
			return invalid("category_id", "unknown")
		}
		return err
	}
	if !category.Kind.Accepts(models.KindExpense) {
		return invalid("category_id", "kind_mismatch")
	}
	return nil
}

// Evaluate derives the budget's usage.
func (s *BudgetService) Evaluate(ctx context.Context, b models.Budget) (models.BudgetStatus, error) {
	spent, _, err := s.spent(ctx, b)
	if err != nil {
		return models.BudgetStatus{}, err
	}
	return models.BudgetStatus{Budget: b, BudgetUsage: b.Usage(money.Amount(spent))}, nil
}

// spent returns the budget's spending in its own currency and in the base
// currency. Expenses in the budget currency are summed as recorded; only the
// other currencies go through their stored base amount.
func (s *BudgetService) spent(ctx context.Context, b models.Budget) (int64, int64, error) {
	totals, err := s.budgets.Spent(ctx, b)
	if err != nil {
		return 0, 0, err
	}
	var native, base int64
	for _, t := range totals {
		base += t.TotalBase
		if t.Currency == b.Currency {
			native += t.Total
			continue
		}
		converted, err := s.rates.FromBase(ctx, t.TotalBase, b.Currency)
		if err != nil {
			return 0, 0, err
		}
		native += converted
	}
	return native, base, nil
}

func (s *BudgetService) evaluateAll(ctx context.Context, budgets []models.Budget) ([]models.BudgetStatus, error) {
	out := make([]models.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		status, err := s.Evaluate(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

func (s *BudgetService) Get(ctx context.Context, ownerID, id string) (models.BudgetStatus, error) {
	b, err := s.budgets.Get(ctx, ownerID, id)
	if err != nil {
		return models.BudgetStatus{}, lookup(err)
	}
	return s.Evaluate(ctx, b)
}

func (s *BudgetService) List(ctx context.Context, ownerID string, activeOnly bool) ([]models.BudgetStatus, error) {
	rows, err := s.budgets.List(ctx, ownerID, activeOnly)
	if err != nil {
		return nil, err
	}
	return s.evaluateAll(ctx, rows)
}

func (s *BudgetService) Update(ctx context.Context, actor Actor, id string, input BudgetInput) (models.BudgetStatus, error) {
	if err := input.validate(); err != nil {
		return models.BudgetStatus{}, err
	}
	before, err := s.budgets.Get(ctx, actor.OwnerID, id)
	if err != nil {
		return models.BudgetStatus{}, lookup(err)
	}
	updated := before
	input.apply(&updated)
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.checkBindings(ctx, tx, updated); err != nil {
			return err
		}
		rows, err := s.budgets.Update(ctx, tx, updated)
		if err != nil {
			return conflict(err, nil)
		}
		if rows == 0 {
			return ErrNotFound
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionUpdate, "budget", id, &before, &updated, "Updated budget "+updated.Name)
	})
	if err != nil {
		return models.BudgetStatus{}, err
	}
	return s.Evaluate(ctx, updated)
}

func (s *BudgetService) Delete(ctx context.Context, actor Actor, id string) error {
	before, err := s.budgets.Get(ctx, actor.OwnerID, id)
	if err != nil {
		return lookup(err)
	}
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.budgets.Delete(ctx, tx, actor.OwnerID, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNotFound
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionDelete, "budget", id, &before, nil, "Deleted budget "+before.Name)
	})
}

// Active returns budgets whose window contains today.
func (s *BudgetService) Active(ctx context.Context, ownerID string, today date.Date) ([]models.BudgetStatus, error) {
	rows, err := s.budgets.ListCurrent(ctx, ownerID, today)
	if err != nil {
		return nil, err
	}
	return s.evaluateAll(ctx, rows)
}

type BudgetAlert struct {
	models.BudgetStatus
	Level string `json:"alert_level"`
}

const (
	AlertExceeded = "exceeded"
	AlertWarning  = "warning"
)

func (s *BudgetService) Alerts(ctx context.Context, ownerID string, today date.Date) ([]BudgetAlert, error) {
	active, err := s.Active(ctx, ownerID, today)
	if err != nil {
		return nil, err
	}
	alerts := make([]BudgetAlert, 0)
	for _, status := range active {
		switch {
		case status.IsExceeded:
			alerts = append(alerts, BudgetAlert{BudgetStatus: status, Level: AlertExceeded})
		case status.ShouldAlert:
			alerts = append(alerts, BudgetAlert{BudgetStatus: status, Level: AlertWarning})
		}
	}
	return alerts, nil
}

type BudgetStats struct {
	TotalBudgeted  money.Amount `json:"total_budgeted"`
	TotalSpent     money.Amount `json:"total_spent"`
	TotalRemaining money.Amount `json:"total_remaining"`
	ActiveBudgets  int          `json:"active_budgets"`
	Exceeded       int          `json:"exceeded"`
}

// Stats sums the current budgets in the base currency.
func (s *BudgetService) Stats(ctx context.Context, ownerID string, today date.Date) (BudgetStats, error) {
	rows, err := s.budgets.ListCurrent(ctx, ownerID, today)
	if err != nil {
		return BudgetStats{}, err
	}
	var stats BudgetStats
	for _, b := range rows {
		budgeted, err := s.rates.ToBase(ctx, int64(b.Amount), b.Currency)
		if err != nil {
			return BudgetStats{}, err
		}
		spent, spentBase, err := s.spent(ctx, b)
		if err != nil {
			return BudgetStats{}, err
		}
		stats.TotalBudgeted += money.Amount(budgeted)
		stats.TotalSpent += money.Amount(spentBase)
		if b.Usage(money.Amount(spent)).IsExceeded {
			stats.Exceeded++
		}
		stats.ActiveBudgets++
	}
	stats.TotalRemaining = stats.TotalBudgeted - stats.TotalSpent
	return stats, nil
}
