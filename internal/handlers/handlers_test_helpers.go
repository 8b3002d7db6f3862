package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"ledger/internal/auth"
	"ledger/internal/config"
	"ledger/internal/date"
	"ledger/internal/jobs"
	"ledger/internal/models"
	"ledger/internal/services"
	"ledger/internal/store"
	"ledger/internal/websocket"

	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "secret"
	testJobToken = "job-token"
)

var testToday = date.MustParse("2025-03-15")

// Stubs embed the service interface so only the methods a test exercises
// need an implementation.

type stubWallets struct {
	WalletService
	createFn   func(ctx context.Context, actor services.Actor, input services.WalletInput) (models.Wallet, error)
	transferFn func(ctx context.Context, actor services.Actor, req services.TransferRequest) (services.TransferResult, error)
	getFn      func(ctx context.Context, ownerID, id string) (models.Wallet, error)
}

func (s stubWallets) CreateWallet(ctx context.Context, actor services.Actor, input services.WalletInput) (models.Wallet, error) {
	return s.createFn(ctx, actor, input)
}

func (s stubWallets) Transfer(ctx context.Context, actor services.Actor, req services.TransferRequest) (services.TransferResult, error) {
	return s.transferFn(ctx, actor, req)
}

func (s stubWallets) GetWallet(ctx context.Context, ownerID, id string) (models.Wallet, error) {
	return s.getFn(ctx, ownerID, id)
}

type stubCurrencies struct {
	CurrencyService
	liveRateFn func(ctx context.Context, from, to string, amountMinor int64) (services.LiveQuote, error)
	createFn   func(ctx context.Context, actor services.Actor, input services.CurrencyInput) (models.Currency, error)
}

func (s stubCurrencies) LiveRate(ctx context.Context, from, to string, amountMinor int64) (services.LiveQuote, error) {
	return s.liveRateFn(ctx, from, to, amountMinor)
}

func (s stubCurrencies) Create(ctx context.Context, actor services.Actor, input services.CurrencyInput) (models.Currency, error) {
	return s.createFn(ctx, actor, input)
}

type stubTransactions struct {
	TransactionService
	createFn     func(ctx context.Context, actor services.Actor, kind models.TransactionKind, input services.TransactionInput) (models.Transaction, error)
	listFn       func(ctx context.Context, ownerID string, filter store.TransactionFilter) ([]models.Transaction, error)
	processDueFn func(ctx context.Context, actor services.Actor, kind models.TransactionKind, asOf date.Date) (services.ProcessResult, error)
}

func (s stubTransactions) Create(ctx context.Context, actor services.Actor, kind models.TransactionKind, input services.TransactionInput) (models.Transaction, error) {
	return s.createFn(ctx, actor, kind, input)
}

func (s stubTransactions) List(ctx context.Context, ownerID string, filter store.TransactionFilter) ([]models.Transaction, error) {
	return s.listFn(ctx, ownerID, filter)
}

func (s stubTransactions) ProcessDue(ctx context.Context, actor services.Actor, kind models.TransactionKind, asOf date.Date) (services.ProcessResult, error) {
	return s.processDueFn(ctx, actor, kind, asOf)
}

type stubSubscriptions struct {
	SubscriptionService
	upcomingFn func(ctx context.Context, ownerID string, days int) ([]services.SubscriptionView, error)
	pauseFn    func(ctx context.Context, actor services.Actor, id string) (services.SubscriptionView, error)
}

func (s stubSubscriptions) Upcoming(ctx context.Context, ownerID string, days int) ([]services.SubscriptionView, error) {
	return s.upcomingFn(ctx, ownerID, days)
}

func (s stubSubscriptions) Pause(ctx context.Context, actor services.Actor, id string) (services.SubscriptionView, error) {
	return s.pauseFn(ctx, actor, id)
}

type stubGoals struct {
	GoalService
	contributeFn func(ctx context.Context, actor services.Actor, id string, amountMinor int64) (models.GoalView, error)
}

func (s stubGoals) Contribute(ctx context.Context, actor services.Actor, id string, amountMinor int64) (models.GoalView, error) {
	return s.contributeFn(ctx, actor, id, amountMinor)
}

type stubAnalytics struct {
	AnalyticsService
	monthlyFn  func(ctx context.Context, ownerID string, month, year int) (services.MonthlyReport, error)
	cashFlowFn func(ctx context.Context, ownerID string, start, end *date.Date, today date.Date) ([]services.CashFlowDay, error)
}

func (s stubAnalytics) MonthlyReport(ctx context.Context, ownerID string, month, year int) (services.MonthlyReport, error) {
	return s.monthlyFn(ctx, ownerID, month, year)
}

func (s stubAnalytics) CashFlow(ctx context.Context, ownerID string, start, end *date.Date, today date.Date) ([]services.CashFlowDay, error) {
	return s.cashFlowFn(ctx, ownerID, start, end, today)
}

type stubHistory struct {
	listFn func(ctx context.Context, ownerID string, filter store.HistoryFilter) ([]models.HistoryEntry, error)
}

func (s stubHistory) List(ctx context.Context, ownerID string, filter store.HistoryFilter) ([]models.HistoryEntry, error) {
	return s.listFn(ctx, ownerID, filter)
}

type stubJobs struct {
	JobRunner
	processRecurringFn func(ctx context.Context, asOf date.Date) (jobs.Summary, error)
}

func (s stubJobs) ProcessRecurring(ctx context.Context, asOf date.Date) (jobs.Summary, error) {
	return s.processRecurringFn(ctx, asOf)
}

func newTestHandler(t *testing.T, svc Services) *Handler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testJobToken), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash job token: %v", err)
	}
	h := New(config.Config{
		JWTSecret:      testSecret,
		AllowedOrigins: "*",
		JobTokenHash:   string(hash),
	}, svc, websocket.NewHub())
	h.today = func() date.Date { return testToday }
	return h
}

// serve sends an authenticated request for owner-1 through the full router.
func serve(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, "owner-1", time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}
