package services

import (
	"context"
	"time"

	"ledger/internal/date"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/store"

	"github.com/shopspring/decimal"
)

type AnalyticsStore interface {
	Totals(ctx context.Context, ownerID string, r date.Range) (store.KindTotals, error)
	CategoryBreakdown(ctx context.Context, ownerID string, kind models.TransactionKind, r date.Range) ([]store.CategoryTotal, error)
	Top(ctx context.Context, ownerID string, kind models.TransactionKind, r date.Range, limit int) ([]models.Transaction, error)
	ProjectTotals(ctx context.Context, ownerID string) ([]store.ProjectTotal, error)
	DailyTotals(ctx context.Context, ownerID string, r date.Range) ([]store.DailyTotal, error)
	Counts(ctx context.Context, ownerID string, today, dueBy date.Date) (store.DashboardCounts, error)
}

type BaseCurrencyResolver interface {
	BaseCurrency(ctx context.Context) (string, error)
}

type walletLister interface {
	List(ctx context.Context, ownerID string, activeOnly bool) ([]models.Wallet, error)
}

type currencyLister interface {
	List(ctx context.Context, activeOnly bool) ([]models.Currency, error)
}

type categoryLister interface {
	List(ctx context.Context, ownerID string, kind models.TransactionKind, activeOnly bool) ([]models.Category, error)
}

type tagLister interface {
	List(ctx context.Context, ownerID string, activeOnly bool) ([]models.Tag, error)
}

// ReferenceLister groups the stores read for reference data.
type ReferenceLister struct {
	Wallets    walletLister
	Currencies currencyLister
	Categories categoryLister
	Tags       tagLister
}

// AnalyticsService reports over the ledger. Every amount is in the base
// currency.
type AnalyticsService struct {
	analytics AnalyticsStore
	base      BaseCurrencyResolver
	refs      ReferenceLister
}

func NewAnalyticsService(analytics AnalyticsStore, base BaseCurrencyResolver, refs ReferenceLister) *AnalyticsService {
	return &AnalyticsService{analytics: analytics, base: base, refs: refs}
}

const topExpenseLimit = 10

type CategoryAmount struct {
	CategoryID string       `json:"category_id"`
	Name       string       `json:"name"`
	Total      money.Amount `json:"total"`
	Count      int64        `json:"count"`
}

type MonthlyReport struct {
	Month             int                  `json:"month"`
	Year              int                  `json:"year"`
	From              date.Date            `json:"start_date"`
	To                date.Date            `json:"end_date"`
	BaseCurrency      string               `json:"base_currency"`
	TotalIncome       money.Amount         `json:"total_income"`
	TotalExpense      money.Amount         `json:"total_expense"`
	NetSavings        money.Amount         `json:"net_savings"`
	IncomeByCategory  []CategoryAmount     `json:"income_by_category"`
	ExpenseByCategory []CategoryAmount     `json:"expense_by_category"`
	TopExpenses       []models.Transaction `json:"top_expenses"`
}

func (s *AnalyticsService) MonthlyReport(ctx context.Context, ownerID string, month, year int) (MonthlyReport, error) {
	if month < 1 || month > 12 {
		return MonthlyReport{}, invalid("month", "range")
	}
	if year < 1 || year > 9999 {
		return MonthlyReport{}, invalid("year", "range")
	}
	start := date.New(year, time.Month(month), 1)
	r := date.Range{From: start, To: start.EndOfMonth()}
	base, err := s.base.BaseCurrency(ctx)
	if err != nil {
		return MonthlyReport{}, err
	}
	totals, err := s.analytics.Totals(ctx, ownerID, r)
	if err != nil {
		return MonthlyReport{}, err
	}
	income, err := s.breakdown(ctx, ownerID, models.KindIncome, r)
	if err != nil {
		return MonthlyReport{}, err
	}
	expense, err := s.breakdown(ctx, ownerID, models.KindExpense, r)
	if err != nil {
		return MonthlyReport{}, err
	}
	top, err := s.analytics.Top(ctx, ownerID, models.KindExpense, r, topExpenseLimit)
	if err != nil {
		return MonthlyReport{}, err
	}
	if top == nil {
		top = []models.Transaction{}
	}
	return MonthlyReport{
		Month:             month,
		Year:              year,
		From:              r.From,
		To:                r.To,
		BaseCurrency:      base,
		TotalIncome:       money.Amount(totals.Income),
		TotalExpense:      money.Amount(totals.Expense),
		NetSavings:        money.Amount(totals.Income - totals.Expense),
		IncomeByCategory:  income,
		ExpenseByCategory: expense,
		TopExpenses:       top,
	}, nil
}

func (s *AnalyticsService) breakdown(ctx context.Context, ownerID string, kind models.TransactionKind, r date.Range) ([]CategoryAmount, error) {
	rows, err := s.analytics.CategoryBreakdown(ctx, ownerID, kind, r)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryAmount, 0, len(rows))
	for _, row := range rows {
		out = append(out, CategoryAmount{CategoryID: row.CategoryID, Name: row.Name, Total: money.Amount(row.Total), Count: row.Count})
	}
	return out, nil
}

type ProjectProfit struct {
	ProjectID string          `json:"project_id"`
	Income    money.Amount    `json:"income"`
	Expense   money.Amount    `json:"expense"`
	Profit    money.Amount    `json:"profit"`
	Margin    decimal.Decimal `json:"profit_margin"`
}

// ProjectProfitability computes profit and margin per project. The margin
// is zero for projects without income.
func (s *AnalyticsService) ProjectProfitability(ctx context.Context, ownerID string) ([]ProjectProfit, error) {
	rows, err := s.analytics.ProjectTotals(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]ProjectProfit, 0, len(rows))
	for _, row := range rows {
		profit := row.Income - row.Expense
		out = append(out, ProjectProfit{
			ProjectID: row.ProjectID,
			Income:    money.Amount(row.Income),
			Expense:   money.Amount(row.Expense),
			Profit:    money.Amount(profit),
			Margin:    money.Percent(profit, row.Income),
		})
	}
	return out, nil
}

type CashFlowDay struct {
	Date       date.Date    `json:"date"`
	Income     money.Amount `json:"income"`
	Expense    money.Amount `json:"expense"`
	Net        money.Amount `json:"net"`
	Cumulative money.Amount `json:"cumulative_balance"`
}

const (
	defaultCashFlowDays = 90
	maxCashFlowDays     = 5 * 366
)

// CashFlow returns one row per day of [start, end], days without activity
// included. Missing bounds default to the 90 days ending today; spans over
// five years are rejected.
func (s *AnalyticsService) CashFlow(ctx context.Context, ownerID string, start, end *date.Date, today date.Date) ([]CashFlowDay, error) {
	r := date.Range{From: today.AddDays(-defaultCashFlowDays), To: today}
	if end != nil {
		r.To = *end
		if start == nil {
			r.From = end.AddDays(-defaultCashFlowDays)
		}
	}
	if start != nil {
		r.From = *start
	}
	if r.To.Before(r.From) {
		return nil, invalid("end_date", "before_start_date")
	}
	if r.From.DaysUntil(r.To) > maxCashFlowDays {
		return nil, invalid("end_date", "range_too_long")
	}
	rows, err := s.analytics.DailyTotals(ctx, ownerID, r)
	if err != nil {
		return nil, err
	}
	byDay := make(map[date.Date]store.DailyTotal, len(rows))
	for _, row := range rows {
		byDay[row.Day] = row
	}
	days := r.Days()
	out := make([]CashFlowDay, 0, len(days))
	var cumulative int64
	for _, day := range days {
		row := byDay[day]
		net := row.Income - row.Expense
		cumulative += net
		out = append(out, CashFlowDay{
			Date:       day,
			Income:     money.Amount(row.Income),
			Expense:    money.Amount(row.Expense),
			Net:        money.Amount(net),
			Cumulative: money.Amount(cumulative),
		})
	}
	return out, nil
}

type Dashboard struct {
	BaseCurrency     string       `json:"base_currency"`
	MonthIncome      money.Amount `json:"current_month_income"`
	MonthExpense     money.Amount `json:"current_month_expense"`
	MonthNet         money.Amount `json:"current_month_net"`
	TotalIncome      money.Amount `json:"total_income"`
	TotalExpense     money.Amount `json:"total_expense"`
	TotalBalance     money.Amount `json:"total_wallet_balance"`
	ActiveWallets    int64        `json:"active_wallets"`
	ActiveBudgets    int64        `json:"active_budgets"`
	ActiveGoals      int64        `json:"active_goals"`
	UpcomingRenewals int64        `json:"upcoming_subscription_renewals"`
}

const dashboardRenewalDays = 7

func (s *AnalyticsService) Dashboard(ctx context.Context, ownerID string, today date.Date) (Dashboard, error) {
	base, err := s.base.BaseCurrency(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	month, err := s.analytics.Totals(ctx, ownerID, date.Range{From: today.StartOfMonth(), To: today.EndOfMonth()})
	if err != nil {
		return Dashboard{}, err
	}
	all, err := s.analytics.Totals(ctx, ownerID, date.Range{})
	if err != nil {
		return Dashboard{}, err
	}
	counts, err := s.analytics.Counts(ctx, ownerID, today, today.AddDays(dashboardRenewalDays))
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		BaseCurrency:     base,
		MonthIncome:      money.Amount(month.Income),
		MonthExpense:     money.Amount(month.Expense),
		MonthNet:         money.Amount(month.Income - month.Expense),
		TotalIncome:      money.Amount(all.Income),
		TotalExpense:     money.Amount(all.Expense),
		TotalBalance:     money.Amount(counts.WalletBalanceBase),
		ActiveWallets:    counts.ActiveWallets,
		ActiveBudgets:    counts.ActiveBudgets,
		ActiveGoals:      counts.ActiveGoals,
		UpcomingRenewals: counts.DueSubscriptions,
	}, nil
}

type ReferenceData struct {
	Wallets    []models.Wallet   `json:"wallets"`
	Currencies []models.Currency `json:"currencies"`
	Categories []models.Category `json:"categories"`
	Tags       []models.Tag      `json:"tags"`
}

// ReferenceData bundles the active lookups a client needs for its forms.
func (s *AnalyticsService) ReferenceData(ctx context.Context, ownerID string) (ReferenceData, error) {
	wallets, err := s.refs.Wallets.List(ctx, ownerID, true)
	if err != nil {
		return ReferenceData{}, err
	}
	currencies, err := s.refs.Currencies.List(ctx, true)
	if err != nil {
		return ReferenceData{}, err
	}
	categories, err := s.refs.Categories.List(ctx, ownerID, "", true)
	if err != nil {
		return ReferenceData{}, err
	}
	tags, err := s.refs.Tags.List(ctx, ownerID, true)
	if err != nil {
		return ReferenceData{}, err
	}
	return ReferenceData{Wallets: wallets, Currencies: currencies, Categories: categories, Tags: tags}, nil
}
