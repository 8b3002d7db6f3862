// Package app wires stores, services and jobs over one database handle.
package app

import (
	"ledger/internal/config"
	"ledger/internal/db"
	"ledger/internal/exchange"
	"ledger/internal/handlers"
	"ledger/internal/jobs"
	"ledger/internal/notify"
	"ledger/internal/services"
	"ledger/internal/store"
	"ledger/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type App struct {
	Hub           *websocket.Hub
	Rates         *exchange.Service
	Wallets       *services.LedgerService
	Currencies    *services.CurrencyService
	Categories    *services.CategoryService
	Tags          *services.TagService
	Transactions  *services.TransactionService
	Subscriptions *services.SubscriptionService
	Budgets       *services.BudgetService
	Goals         *services.GoalService
	Analytics     *services.AnalyticsService
	History       *store.HistoryStore
	Jobs          *jobs.Runner
}

func New(cfg config.Config, database *sqlx.DB) *App {
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	wallets := store.NewWalletStore(database)
	currencies := store.NewCurrencyStore(database)
	categories := store.NewCategoryStore(database)
	tags := store.NewTagStore(database)
	transactions := store.NewTransactionStore(database)
	subscriptions := store.NewSubscriptionStore(database)
	budgets := store.NewBudgetStore(database)
	goals := store.NewGoalStore(database)
	history := store.NewHistoryStore(database)
	analytics := store.NewAnalyticsStore(database)

	rates := exchange.NewService(
		exchange.NewHTTPProvider(cfg.RateProvider),
		exchange.NewCache(cfg.RateCacheTTL),
		txRunner, currencies, wallets, cfg.BaseCurrency,
	)
	walletLedger := services.NewWalletLedger(wallets, currencies, cfg.AllowOverdraft)
	transactionService := services.NewTransactionService(txRunner, walletLedger, transactions, categories, tags, history, hub)
	currencyService := services.NewCurrencyService(txRunner, currencies, wallets, rates, history)
	subscriptionService := services.NewSubscriptionService(
		txRunner, subscriptions, wallets, categories, transactionService, rates,
		notify.NewMailer(cfg.SMTP, cfg.NotifyRecipient), history, hub,
	)
	analyticsService := services.NewAnalyticsService(analytics, rates, services.ReferenceLister{
		Wallets:    wallets,
		Currencies: currencies,
		Categories: categories,
		Tags:       tags,
	})

	return &App{
		Hub:           hub,
		Rates:         rates,
		Wallets:       services.NewLedgerService(txRunner, walletLedger, wallets, rates, history, hub),
		Currencies:    currencyService,
		Categories:    services.NewCategoryService(txRunner, categories, history),
		Tags:          services.NewTagService(txRunner, tags, history),
		Transactions:  transactionService,
		Subscriptions: subscriptionService,
		Budgets:       services.NewBudgetService(txRunner, budgets, categories, currencies, rates, history),
		Goals:         services.NewGoalService(txRunner, goals, wallets, history),
		Analytics:     analyticsService,
		History:       history,
		Jobs:          jobs.NewRunner(wallets, currencyService, transactionService, subscriptionService),
	}
}

// Services exposes the wired graph to the HTTP layer.
func (a *App) Services() handlers.Services {
	return handlers.Services{
		Wallets:       a.Wallets,
		Currencies:    a.Currencies,
		Categories:    a.Categories,
		Tags:          a.Tags,
		Transactions:  a.Transactions,
		Subscriptions: a.Subscriptions,
		Budgets:       a.Budgets,
		Goals:         a.Goals,
		Analytics:     a.Analytics,
		History:       a.History,
		Jobs:          a.Jobs,
	}
}
