package handlers

import (
	"net/http"

	"ledger/internal/config"
	"ledger/internal/date"
	"ledger/internal/middleware"
	"ledger/internal/models"
	"ledger/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Services groups the collaborators the HTTP layer dispatches to.
type Services struct {
	Wallets       WalletService
	Currencies    CurrencyService
	Categories    CategoryService
	Tags          TagService
	Transactions  TransactionService
	Subscriptions SubscriptionService
	Budgets       BudgetService
	Goals         GoalService
	Analytics     AnalyticsService
	History       HistoryStore
	Jobs          JobRunner
}

type Handler struct {
	cfg           config.Config
	wallets       WalletService
	currencies    CurrencyService
	categories    CategoryService
	tags          TagService
	transactions  TransactionService
	subscriptions SubscriptionService
	budgets       BudgetService
	goals         GoalService
	analytics     AnalyticsService
	history       HistoryStore
	jobs          JobRunner
	hub           *websocket.Hub
	today         func() date.Date
}

func New(cfg config.Config, svc Services, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:           cfg,
		wallets:       svc.Wallets,
		currencies:    svc.Currencies,
		categories:    svc.Categories,
		tags:          svc.Tags,
		transactions:  svc.Transactions,
		subscriptions: svc.Subscriptions,
		budgets:       svc.Budgets,
		goals:         svc.Goals,
		analytics:     svc.Analytics,
		history:       svc.History,
		jobs:          svc.Jobs,
		hub:           hub,
		today:         date.Today,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.JobTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Get("/ws/balances", h.WSBalances)

	router.Route("/jobs", func(r chi.Router) {
		r.Use(middleware.RequireJobToken(h.cfg.JobTokenHash))
		r.Post("/refresh-rates", h.JobRefreshRates)
		r.Post("/process-recurring", h.JobProcessRecurring)
		r.Post("/process-renewals", h.JobProcessRenewals)
		r.Post("/notify-renewals", h.JobNotifyRenewals)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))

		r.Route("/currencies", func(r chi.Router) {
			r.Get("/", h.ListCurrencies)
			r.Post("/", h.CreateCurrency)
			r.Post("/refresh-rates", h.RefreshRates)
			r.Get("/live-rate", h.LiveRate)
			r.Get("/{code}", h.GetCurrency)
			r.Put("/{code}", h.UpdateCurrency)
			r.Delete("/{code}", h.DeleteCurrency)
			r.Post("/{code}/default", h.SetDefaultCurrency)
		})
		r.Route("/wallets", func(r chi.Router) {
			r.Get("/", h.ListWallets)
			r.Post("/", h.CreateWallet)
			r.Get("/summary", h.WalletSummary)
			r.Get("/{id}", h.GetWallet)
			r.Put("/{id}", h.UpdateWallet)
			r.Delete("/{id}", h.DeleteWallet)
			r.Post("/{id}/transfer", h.Transfer)
		})
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
			r.Get("/tree", h.CategoryTree)
			r.Get("/{id}", h.GetCategory)
			r.Put("/{id}", h.UpdateCategory)
			r.Delete("/{id}", h.DeleteCategory)
		})
		r.Route("/tags", func(r chi.Router) {
			r.Get("/", h.ListTags)
			r.Post("/", h.CreateTag)
			r.Get("/{id}", h.GetTag)
			r.Put("/{id}", h.UpdateTag)
			r.Delete("/{id}", h.DeleteTag)
		})
		r.Route("/incomes", h.transactionRoutes(models.KindIncome))
		r.Route("/expenses", h.transactionRoutes(models.KindExpense))
		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", h.ListSubscriptions)
			r.Post("/", h.CreateSubscription)
			r.Post("/process-renewals", h.ProcessRenewals)
			r.Get("/upcoming", h.UpcomingSubscriptions)
			r.Get("/stats", h.SubscriptionStats)
			r.Get("/{id}", h.GetSubscription)
			r.Put("/{id}", h.UpdateSubscription)
			r.Delete("/{id}", h.DeleteSubscription)
			r.Post("/{id}/renew", h.RenewSubscription)
			r.Post("/{id}/pause", h.PauseSubscription)
			r.Post("/{id}/resume", h.ResumeSubscription)
		})
		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", h.ListBudgets)
			r.Post("/", h.CreateBudget)
			r.Get("/active", h.ActiveBudgets)
			r.Get("/alerts", h.BudgetAlerts)
			r.Get("/stats", h.BudgetStats)
			r.Get("/{id}", h.GetBudget)
			r.Put("/{id}", h.UpdateBudget)
			r.Delete("/{id}", h.DeleteBudget)
		})
		r.Route("/savings-goals", func(r chi.Router) {
			r.Get("/", h.ListGoals)
			r.Post("/", h.CreateGoal)
			r.Get("/stats", h.GoalStats)
			r.Get("/{id}", h.GetGoal)
			r.Put("/{id}", h.UpdateGoal)
			r.Delete("/{id}", h.DeleteGoal)
			r.Post("/{id}/contribute", h.ContributeGoal)
		})
		r.Get("/history", h.ListHistory)
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/monthly-report", h.MonthlyReport)
			r.Get("/project-profitability", h.ProjectProfitability)
			r.Get("/cash-flow", h.CashFlow)
			r.Get("/dashboard", h.Dashboard)
		})
		r.Get("/reference-data", h.ReferenceData)
	})
	return router
}
