package handlers

import (
	"context"

	"ledger/internal/date"
	"ledger/internal/jobs"
	"ledger/internal/models"
	"ledger/internal/services"
	"ledger/internal/store"
)

type WalletService interface {
	CreateWallet(ctx context.Context, actor services.Actor, input services.WalletInput) (models.Wallet, error)
	UpdateWallet(ctx context.Context, actor services.Actor, id string, input services.WalletUpdate) (models.Wallet, error)
	DeleteWallet(ctx context.Context, actor services.Actor, id string) error
	GetWallet(ctx context.Context, ownerID, id string) (models.Wallet, error)
	ListWallets(ctx context.Context, ownerID string, activeOnly bool) ([]models.Wallet, error)
	Summary(ctx context.Context, ownerID string) ([]services.WalletSummary, error)
	Transfer(ctx context.Context, actor services.Actor, req services.TransferRequest) (services.TransferResult, error)
}

type CurrencyService interface {
	Create(ctx context.Context, actor services.Actor, input services.CurrencyInput) (models.Currency, error)
	Get(ctx context.Context, code string) (models.Currency, error)
	List(ctx context.Context, activeOnly bool) ([]models.Currency, error)
	Update(ctx context.Context, actor services.Actor, code string, input services.CurrencyUpdate) (models.Currency, error)
	Delete(ctx context.Context, actor services.Actor, code string) error
	SetDefault(ctx context.Context, actor services.Actor, code string) (models.Currency, error)
	RefreshRates(ctx context.Context) (int, error)
	LiveRate(ctx context.Context, from, to string, amountMinor int64) (services.LiveQuote, error)
}

type CategoryService interface {
	Create(ctx context.Context, actor services.Actor, input services.CategoryInput) (models.Category, error)
	Get(ctx context.Context, ownerID, id string) (models.Category, error)
	List(ctx context.Context, ownerID string, kind models.TransactionKind, activeOnly bool) ([]models.Category, error)
	Tree(ctx context.Context, ownerID string, kind models.TransactionKind) ([]models.CategoryNode, error)
	Update(ctx context.Context, actor services.Actor, id string, input services.CategoryInput) (models.Category, error)
	Delete(ctx context.Context, actor services.Actor, id string) error
}

type TagService interface {
	Create(ctx context.Context, actor services.Actor, input services.TagInput) (models.Tag, error)
	Get(ctx context.Context, ownerID, id string) (models.Tag, error)
	List(ctx context.Context, ownerID string, activeOnly bool) ([]models.Tag, error)
	Update(ctx context.Context, actor services.Actor, id string, input services.TagInput) (models.Tag, error)
	Delete(ctx context.Context, actor services.Actor, id string) error
}

type TransactionService interface {
	Create(ctx context.Context, actor services.Actor, kind models.TransactionKind, input services.TransactionInput) (models.Transaction, error)
	Get(ctx context.Context, ownerID string, kind models.TransactionKind, id string) (models.Transaction, error)
	List(ctx context.Context, ownerID string, filter store.TransactionFilter) ([]models.Transaction, error)
	Update(ctx context.Context, actor services.Actor, kind models.TransactionKind, id string, input services.TransactionInput) (models.Transaction, error)
	Delete(ctx context.Context, actor services.Actor, kind models.TransactionKind, id string) error
	Stats(ctx context.Context, ownerID string, kind models.TransactionKind, today date.Date) (services.TransactionStats, error)
	ProcessDue(ctx context.Context, actor services.Actor, kind models.TransactionKind, asOf date.Date) (services.ProcessResult, error)
}

type SubscriptionService interface {
	Create(ctx context.Context, actor services.Actor, input services.SubscriptionInput) (services.SubscriptionView, error)
	Get(ctx context.Context, ownerID, id string) (services.SubscriptionView, error)
	List(ctx context.Context, ownerID string, status models.SubscriptionStatus) ([]services.SubscriptionView, error)
	Update(ctx context.Context, actor services.Actor, id string, input services.SubscriptionInput) (services.SubscriptionView, error)
	Delete(ctx context.Context, actor services.Actor, id string) error
	Pause(ctx context.Context, actor services.Actor, id string) (services.SubscriptionView, error)
	Resume(ctx context.Context, actor services.Actor, id string) (services.SubscriptionView, error)
	Renew(ctx context.Context, actor services.Actor, id string) (services.RenewalResult, error)
	ProcessRenewals(ctx context.Context, actor services.Actor, asOf date.Date) (services.ProcessResult, error)
	Upcoming(ctx context.Context, ownerID string, days int) ([]services.SubscriptionView, error)
	Stats(ctx context.Context, ownerID string) (services.SubscriptionStats, error)
}

type BudgetService interface {
	Create(ctx context.Context, actor services.Actor, input services.BudgetInput) (models.BudgetStatus, error)
	Get(ctx context.Context, ownerID, id string) (models.BudgetStatus, error)
	List(ctx context.Context, ownerID string, activeOnly bool) ([]models.BudgetStatus, error)
	Update(ctx context.Context, actor services.Actor, id string, input services.BudgetInput) (models.BudgetStatus, error)
	Delete(ctx context.Context, actor services.Actor, id string) error
	Active(ctx context.Context, ownerID string, today date.Date) ([]models.BudgetStatus, error)
	Alerts(ctx context.Context, ownerID string, today date.Date) ([]services.BudgetAlert, error)
	Stats(ctx context.Context, ownerID string, today date.Date) (services.BudgetStats, error)
}

type GoalService interface {
	Create(ctx context.Context, actor services.Actor, input services.GoalInput) (models.GoalView, error)
	Get(ctx context.Context, ownerID, id string) (models.GoalView, error)
	List(ctx context.Context, ownerID string, status models.GoalStatus) ([]models.GoalView, error)
	Update(ctx context.Context, actor services.Actor, id string, input services.GoalInput) (models.GoalView, error)
	Delete(ctx context.Context, actor services.Actor, id string) error
	Contribute(ctx context.Context, actor services.Actor, id string, amountMinor int64) (models.GoalView, error)
	Stats(ctx context.Context, ownerID string) (services.GoalStats, error)
}

type AnalyticsService interface {
	MonthlyReport(ctx context.Context, ownerID string, month, year int) (services.MonthlyReport, error)
	ProjectProfitability(ctx context.Context, ownerID string) ([]services.ProjectProfit, error)
	CashFlow(ctx context.Context, ownerID string, start, end *date.Date, today date.Date) ([]services.CashFlowDay, error)
	Dashboard(ctx context.Context, ownerID string, today date.Date) (services.Dashboard, error)
	ReferenceData(ctx context.Context, ownerID string) (services.ReferenceData, error)
}

type HistoryStore interface {
	List(ctx context.Context, ownerID string, filter store.HistoryFilter) ([]models.HistoryEntry, error)
}

type JobRunner interface {
	RefreshRates(ctx context.Context) (int, error)
	ProcessRecurring(ctx context.Context, asOf date.Date) (jobs.Summary, error)
	ProcessRenewals(ctx context.Context, asOf date.Date) (jobs.Summary, error)
	NotifyRenewals(ctx context.Context, today date.Date) (jobs.Summary, error)
}
