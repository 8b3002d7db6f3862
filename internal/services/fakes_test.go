package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"

	"ledger/internal/date"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/store"
	"ledger/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const testOwner = "owner-1"

var (
	uniqueViolation = &pq.Error{Code: "23505"}
	errRateMissing  = errors.New("rate missing")
)

// memState is an in-memory database shared by the fake stores below.
type memState struct {
	wallets       map[string]models.Wallet
	currencies    map[string]models.Currency
	transactions  map[string]models.Transaction
	categories    map[string]models.Category
	tags          map[string]models.Tag
	links         map[string][]string
	subscriptions map[string]models.Subscription
	budgets       map[string]models.Budget
	goals         map[string]models.SavingsGoal
	history       []models.HistoryEntry
}

func newMemState() *memState {
	return &memState{
		wallets:       map[string]models.Wallet{},
		currencies:    map[string]models.Currency{},
		transactions:  map[string]models.Transaction{},
		categories:    map[string]models.Category{},
		tags:          map[string]models.Tag{},
		links:         map[string][]string{},
		subscriptions: map[string]models.Subscription{},
		budgets:       map[string]models.Budget{},
		goals:         map[string]models.SavingsGoal{},
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *memState) clone() memState {
	return memState{
		wallets:       cloneMap(s.wallets),
		currencies:    cloneMap(s.currencies),
		transactions:  cloneMap(s.transactions),
		categories:    cloneMap(s.categories),
		tags:          cloneMap(s.tags),
		links:         cloneMap(s.links),
		subscriptions: cloneMap(s.subscriptions),
		budgets:       cloneMap(s.budgets),
		goals:         cloneMap(s.goals),
		history:       append([]models.HistoryEntry(nil), s.history...),
	}
}

// memTxRunner restores the state when fn fails, like a rollback.
type memTxRunner struct {
	state *memState
	err   error
}

func (r memTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	if r.err != nil {
		return r.err
	}
	saved := r.state.clone()
	if err := fn(nil); err != nil {
		*r.state = saved
		return err
	}
	return nil
}

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type memWallets struct{ *memState }

func (m memWallets) Create(_ context.Context, _ store.Execer, w models.Wallet) error {
	m.wallets[w.ID] = w
	return nil
}

func (m memWallets) Get(_ context.Context, ownerID, id string) (models.Wallet, error) {
	w, ok := m.wallets[id]
	if !ok || w.OwnerID != ownerID {
		return models.Wallet{}, sql.ErrNoRows
	}
	return w, nil
}

func (m memWallets) GetForUpdate(ctx context.Context, _ store.Getter, ownerID, id string) (models.Wallet, error) {
	return m.Get(ctx, ownerID, id)
}

func (m memWallets) List(_ context.Context, ownerID string, activeOnly bool) ([]models.Wallet, error) {
	var out []models.Wallet
	for _, w := range m.wallets {
		if w.OwnerID == ownerID && (!activeOnly || w.IsActive) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memWallets) Update(_ context.Context, _ store.Execer, w models.Wallet) (int64, error) {
	current, ok := m.wallets[w.ID]
	if !ok {
		return 0, nil
	}
	w.Balance, w.BalanceBase = current.Balance, current.BalanceBase
	m.wallets[w.ID] = w
	return 1, nil
}

func (m memWallets) UpdateBalance(_ context.Context, _ store.Execer, id string, balance, balanceBase int64) error {
	w := m.wallets[id]
	w.Balance, w.BalanceBase = money.Amount(balance), money.Amount(balanceBase)
	m.wallets[id] = w
	return nil
}

func (m memWallets) RepriceBase(_ context.Context, _ store.Execer, currency string, rate decimal.Decimal) (int64, error) {
	var n int64
	for id, w := range m.wallets {
		if w.Currency != currency {
			continue
		}
		base, err := money.DivideMinor(int64(w.Balance), rate)
		if err != nil {
			return 0, err
		}
		w.BalanceBase = money.Amount(base)
		m.wallets[id] = w
		n++
	}
	return n, nil
}

func (m memWallets) Delete(_ context.Context, _ store.Execer, ownerID, id string) (int64, error) {
	if w, ok := m.wallets[id]; !ok || w.OwnerID != ownerID {
		return 0, nil
	}
	delete(m.wallets, id)
	return 1, nil
}

func (m memWallets) IsReferenced(_ context.Context, _ store.Getter, id string) (bool, error) {
	for _, t := range m.transactions {
		if t.WalletID == id {
			return true, nil
		}
	}
	for _, sub := range m.subscriptions {
		if sub.WalletID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m memWallets) Summary(context.Context, string) ([]store.WalletSummary, error) {
	return nil, nil
}

type memCurrencies struct{ *memState }

func (m memCurrencies) Create(_ context.Context, _ store.Execer, c models.Currency) error {
	if _, ok := m.currencies[c.Code]; ok {
		return uniqueViolation
	}
	m.currencies[c.Code] = c
	return nil
}

func (m memCurrencies) Get(_ context.Context, code string) (models.Currency, error) {
	c, ok := m.currencies[code]
	if !ok {
		return models.Currency{}, sql.ErrNoRows
	}
	return c, nil
}

func (m memCurrencies) GetTx(ctx context.Context, _ store.Getter, code string) (models.Currency, error) {
	return m.Get(ctx, code)
}

func (m memCurrencies) List(_ context.Context, activeOnly bool) ([]models.Currency, error) {
	var out []models.Currency
	for _, c := range m.currencies {
		if !activeOnly || c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m memCurrencies) Update(_ context.Context, _ store.Execer, c models.Currency) (int64, error) {
	m.currencies[c.Code] = c
	return 1, nil
}

func (m memCurrencies) Delete(_ context.Context, _ store.Execer, code string) (int64, error) {
	delete(m.currencies, code)
	return 1, nil
}

func (m memCurrencies) IsReferenced(_ context.Context, _ store.Getter, code string) (bool, error) {
	for _, w := range m.wallets {
		if w.Currency == code {
			return true, nil
		}
	}
	return false, nil
}

func (m memCurrencies) MakeDefault(_ context.Context, _ store.Execer, code string) (int64, error) {
	for k, c := range m.currencies {
		c.IsDefault = k == code
		c.RateToBase = decimal.NullDecimal{}
		if c.IsDefault {
			c.RateToBase = decimal.NewNullDecimal(decimal.NewFromInt(1))
		}
		m.currencies[k] = c
	}
	return 1, nil
}

type memTransactions struct{ *memState }

func (m memTransactions) Create(_ context.Context, _ store.Execer, t models.Transaction) error {
	for _, existing := range m.transactions {
		if existing.OccurrenceDate == nil || t.OccurrenceDate == nil || *existing.OccurrenceDate != *t.OccurrenceDate {
			continue
		}
		if t.SourceID != nil && existing.SourceID != nil && *t.SourceID == *existing.SourceID {
			return uniqueViolation
		}
		if t.SubscriptionID != nil && existing.SubscriptionID != nil && *t.SubscriptionID == *existing.SubscriptionID {
			return uniqueViolation
		}
	}
	t.TagIDs = nil
	m.transactions[t.ID] = t
	return nil
}

func (m memTransactions) Get(_ context.Context, ownerID string, kind models.TransactionKind, id string) (models.Transaction, error) {
	t, ok := m.transactions[id]
	if !ok || t.OwnerID != ownerID || t.Kind != kind {
		return models.Transaction{}, sql.ErrNoRows
	}
	return t, nil
}

func (m memTransactions) GetForUpdate(ctx context.Context, _ store.Getter, ownerID string, kind models.TransactionKind, id string) (models.Transaction, error) {
	return m.Get(ctx, ownerID, kind, id)
}

func (m memTransactions) Update(_ context.Context, _ store.Execer, t models.Transaction) error {
	t.TagIDs = nil
	m.transactions[t.ID] = t
	return nil
}

func (m memTransactions) UpdateSchedule(_ context.Context, _ store.Execer, id string, recurring bool, next, processedOn *date.Date) error {
	t := m.transactions[id]
	t.IsRecurring, t.NextOccurrence, t.LastProcessedOn = recurring, next, processedOn
	m.transactions[id] = t
	return nil
}

func (m memTransactions) LastOccurrence(_ context.Context, _ store.Getter, templateID string) (*date.Date, error) {
	var last *date.Date
	for _, child := range m.children(templateID) {
		if child.OccurrenceDate != nil && (last == nil || child.OccurrenceDate.After(*last)) {
			on := *child.OccurrenceDate
			last = &on
		}
	}
	return last, nil
}

func (m memTransactions) Delete(_ context.Context, _ store.Execer, ownerID, id string) (int64, error) {
	if t, ok := m.transactions[id]; !ok || t.OwnerID != ownerID {
		return 0, nil
	}
	delete(m.transactions, id)
	delete(m.links, id)
	return 1, nil
}

func (m memTransactions) List(_ context.Context, ownerID string, filter store.TransactionFilter) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, t := range m.transactions {
		if t.OwnerID == ownerID && (filter.Kind == "" || t.Kind == filter.Kind) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memTransactions) ListDue(_ context.Context, ownerID string, kind models.TransactionKind, asOf date.Date) ([]string, error) {
	var ids []string
	for _, t := range m.transactions {
		if t.OwnerID != ownerID || t.Kind != kind || !t.IsRecurring || t.NextOccurrence == nil {
			continue
		}
		if t.NextOccurrence.After(asOf) {
			continue
		}
		if t.LastProcessedOn != nil && !t.LastProcessedOn.Before(asOf) {
			continue
		}
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m memTransactions) Stats(_ context.Context, ownerID string, kind models.TransactionKind, today date.Date) (store.TransactionStats, error) {
	var stats store.TransactionStats
	for _, t := range m.transactions {
		if t.OwnerID != ownerID || t.Kind != kind {
			continue
		}
		stats.Total += int64(t.AmountBase)
		stats.Count++
		if !t.Date.Before(today.StartOfMonth()) && !t.Date.After(today) {
			stats.ThisMonth += int64(t.AmountBase)
		}
		if !t.Date.Before(today.StartOfYear()) && !t.Date.After(today) {
			stats.ThisYear += int64(t.AmountBase)
		}
	}
	return stats, nil
}

// children returns records materialized from templateID.
func (m memTransactions) children(templateID string) []models.Transaction {
	var out []models.Transaction
	for _, t := range m.transactions {
		if t.SourceID != nil && *t.SourceID == templateID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

type memCategories struct{ *memState }

func (m memCategories) Create(_ context.Context, _ store.Execer, c models.Category) error {
	for _, existing := range m.categories {
		if existing.OwnerID == c.OwnerID && existing.Name == c.Name {
			return uniqueViolation
		}
	}
	m.categories[c.ID] = c
	return nil
}

func (m memCategories) Get(_ context.Context, ownerID, id string) (models.Category, error) {
	c, ok := m.categories[id]
	if !ok || c.OwnerID != ownerID {
		return models.Category{}, sql.ErrNoRows
	}
	return c, nil
}

func (m memCategories) GetTx(ctx context.Context, _ store.Getter, ownerID, id string) (models.Category, error) {
	return m.Get(ctx, ownerID, id)
}

func (m memCategories) List(_ context.Context, ownerID string, kind models.TransactionKind, activeOnly bool) ([]models.Category, error) {
	var out []models.Category
	for _, c := range m.categories {
		if c.OwnerID != ownerID || (activeOnly && !c.IsActive) || (kind != "" && !c.Kind.Accepts(kind)) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m memCategories) Update(_ context.Context, _ store.Execer, c models.Category) (int64, error) {
	m.categories[c.ID] = c
	return 1, nil
}

func (m memCategories) Delete(_ context.Context, _ store.Execer, _ string, id string) (int64, error) {
	delete(m.categories, id)
	return 1, nil
}

func (m memCategories) IsReferenced(_ context.Context, _ store.Getter, id string) (bool, error) {
	for _, t := range m.transactions {
		if t.CategoryID == id {
			return true, nil
		}
	}
	for _, c := range m.categories {
		if c.ParentID != nil && *c.ParentID == id {
			return true, nil
		}
	}
	return false, nil
}

type memTags struct{ *memState }

func (m memTags) Create(_ context.Context, _ store.Execer, t models.Tag) error {
	m.tags[t.ID] = t
	return nil
}

func (m memTags) Get(_ context.Context, ownerID, id string) (models.Tag, error) {
	t, ok := m.tags[id]
	if !ok || t.OwnerID != ownerID {
		return models.Tag{}, sql.ErrNoRows
	}
	return t, nil
}

func (m memTags) List(_ context.Context, ownerID string, activeOnly bool) ([]models.Tag, error) {
	var out []models.Tag
	for _, t := range m.tags {
		if t.OwnerID == ownerID && (!activeOnly || t.IsActive) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m memTags) Update(_ context.Context, _ store.Execer, t models.Tag) (int64, error) {
	if _, ok := m.tags[t.ID]; !ok {
		return 0, nil
	}
	m.tags[t.ID] = t
	return 1, nil
}

func (m memTags) Delete(_ context.Context, _ store.Execer, ownerID, id string) (int64, error) {
	if t, ok := m.tags[id]; !ok || t.OwnerID != ownerID {
		return 0, nil
	}
	delete(m.tags, id)
	return 1, nil
}

func (m memTags) CountOwned(_ context.Context, _ store.Getter, ownerID string, ids []string) (int, error) {
	count := 0
	for _, id := range ids {
		if t, ok := m.tags[id]; ok && t.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (m memTags) SetForTransaction(_ context.Context, _ store.Execer, transactionID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		delete(m.links, transactionID)
		return nil
	}
	m.links[transactionID] = append([]string(nil), tagIDs...)
	return nil
}

func (m memTags) ListForTransaction(_ context.Context, transactionID string) ([]string, error) {
	return append([]string{}, m.links[transactionID]...), nil
}

type memSubscriptions struct{ *memState }

func (m memSubscriptions) Create(_ context.Context, _ store.Execer, sub models.Subscription) error {
	m.subscriptions[sub.ID] = sub
	return nil
}

func (m memSubscriptions) Get(_ context.Context, ownerID, id string) (models.Subscription, error) {
	sub, ok := m.subscriptions[id]
	if !ok || sub.OwnerID != ownerID {
		return models.Subscription{}, sql.ErrNoRows
	}
	return sub, nil
}

func (m memSubscriptions) GetForUpdate(ctx context.Context, _ store.Getter, ownerID, id string) (models.Subscription, error) {
	return m.Get(ctx, ownerID, id)
}

func (m memSubscriptions) List(_ context.Context, ownerID string, status models.SubscriptionStatus) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range m.subscriptions {
		if sub.OwnerID == ownerID && (status == "" || sub.Status == status) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memSubscriptions) Update(_ context.Context, _ store.Execer, sub models.Subscription) (int64, error) {
	m.subscriptions[sub.ID] = sub
	return 1, nil
}

func (m memSubscriptions) UpdateBilling(_ context.Context, _ store.Execer, id string, next date.Date, status models.SubscriptionStatus) error {
	sub := m.subscriptions[id]
	sub.NextBillingDate, sub.Status = next, status
	m.subscriptions[id] = sub
	return nil
}

func (m memSubscriptions) SetStatus(_ context.Context, _ store.Execer, id string, status models.SubscriptionStatus) error {
	sub := m.subscriptions[id]
	sub.Status = status
	m.subscriptions[id] = sub
	return nil
}

func (m memSubscriptions) Delete(_ context.Context, _ store.Execer, _ string, id string) (int64, error) {
	delete(m.subscriptions, id)
	return 1, nil
}

func (m memSubscriptions) ListDue(_ context.Context, ownerID string, asOf date.Date) ([]string, error) {
	var ids []string
	for _, sub := range m.subscriptions {
		if sub.OwnerID == ownerID && sub.Status == models.SubscriptionActive && !sub.NextBillingDate.After(asOf) {
			ids = append(ids, sub.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m memSubscriptions) ListUpcoming(_ context.Context, ownerID string, from, until date.Date) ([]models.Subscription, error) {
	var out []models.Subscription
	r := date.Range{From: from, To: until}
	for _, sub := range m.subscriptions {
		if sub.OwnerID == ownerID && sub.Status == models.SubscriptionActive && r.Contains(sub.NextBillingDate) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memSubscriptions) ListNotifiable(_ context.Context, ownerID string, today date.Date) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range m.subscriptions {
		if sub.OwnerID != ownerID || sub.Status != models.SubscriptionActive {
			continue
		}
		opens := sub.NextBillingDate.AddDays(-sub.NotifyDaysBefore)
		if opens.After(today) {
			continue
		}
		if sub.LastNotifiedOn != nil && !sub.LastNotifiedOn.Before(opens) {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memSubscriptions) MarkNotified(_ context.Context, _ store.Execer, id string, on date.Date) error {
	sub := m.subscriptions[id]
	sub.LastNotifiedOn = &on
	m.subscriptions[id] = sub
	return nil
}

type memBudgets struct{ *memState }

func (m memBudgets) Create(_ context.Context, _ store.Execer, b models.Budget) error {
	m.budgets[b.ID] = b
	return nil
}

func (m memBudgets) Get(_ context.Context, ownerID, id string) (models.Budget, error) {
	b, ok := m.budgets[id]
	if !ok || b.OwnerID != ownerID {
		return models.Budget{}, sql.ErrNoRows
	}
	return b, nil
}

func (m memBudgets) List(_ context.Context, ownerID string, activeOnly bool) ([]models.Budget, error) {
	var out []models.Budget
	for _, b := range m.budgets {
		if b.OwnerID == ownerID && (!activeOnly || b.IsActive) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memBudgets) ListCurrent(_ context.Context, ownerID string, today date.Date) ([]models.Budget, error) {
	var out []models.Budget
	for _, b := range m.budgets {
		if b.OwnerID == ownerID && b.IsActive && (date.Range{From: b.StartDate, To: b.EndDate}).Contains(today) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memBudgets) Update(_ context.Context, _ store.Execer, b models.Budget) (int64, error) {
	if _, ok := m.budgets[b.ID]; !ok {
		return 0, nil
	}
	m.budgets[b.ID] = b
	return 1, nil
}

func (m memBudgets) Delete(_ context.Context, _ store.Execer, ownerID, id string) (int64, error) {
	if b, ok := m.budgets[id]; !ok || b.OwnerID != ownerID {
		return 0, nil
	}
	delete(m.budgets, id)
	return 1, nil
}

func (m memBudgets) Spent(_ context.Context, b models.Budget) ([]store.CurrencyTotal, error) {
	window := date.Range{From: b.StartDate, To: b.EndDate}
	byCurrency := map[string]store.CurrencyTotal{}
	for _, t := range m.transactions {
		if t.OwnerID != b.OwnerID || t.Kind != models.KindExpense || !window.Contains(t.Date) {
			continue
		}
		if b.Type == models.BudgetProject && (t.ProjectID == nil || *t.ProjectID != *b.ProjectID) {
			continue
		}
		if b.Type == models.BudgetCategory && t.CategoryID != *b.CategoryID {
			continue
		}
		total := byCurrency[t.Currency]
		total.Currency = t.Currency
		total.Total += int64(t.Amount)
		total.TotalBase += int64(t.AmountBase)
		byCurrency[t.Currency] = total
	}
	out := make([]store.CurrencyTotal, 0, len(byCurrency))
	for _, total := range byCurrency {
		out = append(out, total)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

type memGoals struct{ *memState }

func (m memGoals) Create(_ context.Context, _ store.Execer, g models.SavingsGoal) error {
	m.goals[g.ID] = g
	return nil
}

func (m memGoals) Get(_ context.Context, ownerID, id string) (models.SavingsGoal, error) {
	g, ok := m.goals[id]
	if !ok || g.OwnerID != ownerID {
		return models.SavingsGoal{}, sql.ErrNoRows
	}
	return g, nil
}

func (m memGoals) GetForUpdate(ctx context.Context, _ store.Getter, ownerID, id string) (models.SavingsGoal, error) {
	return m.Get(ctx, ownerID, id)
}

func (m memGoals) List(_ context.Context, ownerID string, status models.GoalStatus) ([]models.SavingsGoal, error) {
	var out []models.SavingsGoal
	for _, g := range m.goals {
		if g.OwnerID == ownerID && (status == "" || g.Status == status) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m memGoals) Update(_ context.Context, _ store.Execer, g models.SavingsGoal) (int64, error) {
	m.goals[g.ID] = g
	return 1, nil
}

func (m memGoals) UpdateProgress(_ context.Context, _ store.Execer, id string, current int64, status models.GoalStatus) error {
	g := m.goals[id]
	g.CurrentAmount, g.Status = money.Amount(current), status
	m.goals[id] = g
	return nil
}

func (m memGoals) Delete(_ context.Context, _ store.Execer, _ string, id string) (int64, error) {
	delete(m.goals, id)
	return 1, nil
}

type memHistory struct{ *memState }

func (m memHistory) Insert(_ context.Context, _ store.Execer, entry models.HistoryEntry) error {
	m.history = append(m.history, entry)
	return nil
}

// historyFor returns audit rows matching action and entity type.
func (s *memState) historyFor(action models.HistoryAction, entityType string) []models.HistoryEntry {
	var out []models.HistoryEntry
	for _, entry := range s.history {
		if entry.Action == action && entry.EntityType == entityType {
			out = append(out, entry)
		}
	}
	return out
}

// stubRates converts with fixed rates expressed as units per base unit.
type stubRates struct {
	perBase   map[string]decimal.Decimal
	err       error
	refreshFn func(ctx context.Context) (int, error)
}

func (s stubRates) rate(code string) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Zero, s.err
	}
	rate, ok := s.perBase[code]
	if !ok {
		return decimal.Zero, errRateMissing
	}
	return rate, nil
}

func (s stubRates) Convert(_ context.Context, amountMinor int64, from, to string) (int64, decimal.Decimal, error) {
	fromRate, err := s.rate(from)
	if err != nil {
		return 0, decimal.Zero, err
	}
	toRate, err := s.rate(to)
	if err != nil {
		return 0, decimal.Zero, err
	}
	rate, err := money.CrossRate(fromRate, toRate)
	if err != nil {
		return 0, decimal.Zero, err
	}
	return money.ConvertMinor(amountMinor, rate), rate, nil
}

func (s stubRates) ToBase(_ context.Context, amountMinor int64, currency string) (int64, error) {
	rate, err := s.rate(currency)
	if err != nil {
		return 0, err
	}
	return money.DivideMinor(amountMinor, rate)
}

func (s stubRates) FromBase(_ context.Context, baseMinor int64, currency string) (int64, error) {
	rate, err := s.rate(currency)
	if err != nil {
		return 0, err
	}
	return money.ConvertMinor(baseMinor, rate), nil
}

func (s stubRates) RefreshAll(ctx context.Context) (int, error) {
	if s.refreshFn == nil {
		return 0, nil
	}
	return s.refreshFn(ctx)
}

func (s stubRates) BaseCurrency(context.Context) (string, error) {
	return "USD", nil
}

type stubHub struct {
	calls []websocket.BalanceUpdate
}

func (s *stubHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	s.calls = append(s.calls, update)
}

type stubNotifier struct {
	sent []string
	err  error
}

func (s *stubNotifier) NotifyRenewal(_ context.Context, sub models.Subscription, _ int) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sub.ID)
	return nil
}

// fixture wires every service over one memState with USD as base, 1 USD =
// 1690 RWF and 1 USD = 0.9 EUR.
type fixture struct {
	state         *memState
	hub           *stubHub
	rates         stubRates
	ledger        *LedgerService
	transactions  *TransactionService
	subscriptions *SubscriptionService
	budgets       *BudgetService
	goals         *GoalService
	categories    *CategoryService
	tags          *TagService
	currencies    *CurrencyService
	notifier      *stubNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	state := newMemState()
	state.currencies["USD"] = models.Currency{Code: "USD", Name: "US Dollar", Symbol: "$", IsDefault: true, IsActive: true,
		RateToBase: decimal.NewNullDecimal(decimal.NewFromInt(1))}
	state.currencies["RWF"] = models.Currency{Code: "RWF", Name: "Rwandan Franc", Symbol: "FRw", IsActive: true,
		RateToBase: decimal.NewNullDecimal(decimal.NewFromInt(1690))}
	state.currencies["EUR"] = models.Currency{Code: "EUR", Name: "Euro", Symbol: "€", IsActive: true,
		RateToBase: decimal.NewNullDecimal(decimal.RequireFromString("0.9"))}
	state.categories["cat-salary"] = models.Category{ID: "cat-salary", OwnerID: testOwner, Name: "Salary", Kind: models.IncomeCategory, IsActive: true}
	state.categories["cat-food"] = models.Category{ID: "cat-food", OwnerID: testOwner, Name: "Food", Kind: models.ExpenseCategory, IsActive: true}
	state.categories["cat-misc"] = models.Category{ID: "cat-misc", OwnerID: testOwner, Name: "Misc", Kind: models.DualCategory, IsActive: true}
	state.tags["tag-work"] = models.Tag{ID: "tag-work", OwnerID: testOwner, Name: "work", IsActive: true}

	rates := stubRates{perBase: map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(1),
		"RWF": decimal.NewFromInt(1690),
		"EUR": decimal.RequireFromString("0.9"),
	}}
	hub := &stubHub{}
	notifier := &stubNotifier{}
	runner := memTxRunner{state: state}
	history := memHistory{state}
	walletLedger := NewWalletLedger(memWallets{state}, memCurrencies{state}, false)
	transactions := NewTransactionService(runner, walletLedger, memTransactions{state}, memCategories{state}, memTags{state}, history, hub)
	subscriptions := NewSubscriptionService(runner, memSubscriptions{state}, memWallets{state}, memCategories{state}, transactions, rates, notifier, history, hub)
	return &fixture{
		state:         state,
		hub:           hub,
		rates:         rates,
		ledger:        NewLedgerService(runner, walletLedger, memWallets{state}, rates, history, hub),
		transactions:  transactions,
		subscriptions: subscriptions,
		budgets:       NewBudgetService(runner, memBudgets{state}, memCategories{state}, memCurrencies{state}, rates, history),
		goals:         NewGoalService(runner, memGoals{state}, memWallets{state}, history),
		categories:    NewCategoryService(runner, memCategories{state}, history),
		tags:          NewTagService(runner, memTags{state}, history),
		currencies:    NewCurrencyService(runner, memCurrencies{state}, memWallets{state}, rates, history),
		notifier:      notifier,
	}
}

func (f *fixture) wallet(t *testing.T, currency string, balance int64) models.Wallet {
	t.Helper()
	w, err := f.ledger.CreateWallet(context.Background(), OwnerActor(testOwner), WalletInput{
		Name: currency + " wallet", Currency: currency, InitialBalance: balance,
	})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return w
}

func (f *fixture) balance(t *testing.T, walletID string) int64 {
	t.Helper()
	return int64(f.state.wallets[walletID].Balance)
}
