package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"ledger/internal/date"
	"ledger/internal/db"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/recurrence"
	"ledger/internal/store"
	"ledger/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type SubscriptionStore interface {
	Create(ctx context.Context, tx store.Execer, sub models.Subscription) error
	Get(ctx context.Context, ownerID, id string) (models.Subscription, error)
	GetForUpdate(ctx context.Context, tx store.Getter, ownerID, id string) (models.Subscription, error)
	List(ctx context.Context, ownerID string, status models.SubscriptionStatus) ([]models.Subscription, error)
	Update(ctx context.Context, tx store.Execer, sub models.Subscription) (int64, error)
	UpdateBilling(ctx context.Context, tx store.Execer, id string, next date.Date, status models.SubscriptionStatus) error
	SetStatus(ctx context.Context, tx store.Execer, id string, status models.SubscriptionStatus) error
	Delete(ctx context.Context, tx store.Execer, ownerID, id string) (int64, error)
	ListDue(ctx context.Context, ownerID string, asOf date.Date) ([]string, error)
	ListUpcoming(ctx context.Context, ownerID string, from, until date.Date) ([]models.Subscription, error)
	ListNotifiable(ctx context.Context, ownerID string, today date.Date) ([]models.Subscription, error)
	MarkNotified(ctx context.Context, tx store.Execer, id string, on date.Date) error
}

type WalletReader interface {
	Get(ctx context.Context, ownerID, id string) (models.Wallet, error)
}

// Recorder writes a transaction and its balance effect inside tx.
type Recorder interface {
	Record(ctx context.Context, tx *sqlx.Tx, actor Actor, t *models.Transaction) (models.Wallet, error)
}

type BaseConverter interface {
	ToBase(ctx context.Context, amountMinor int64, currency string) (int64, error)
	FromBase(ctx context.Context, baseMinor int64, currency string) (int64, error)
}

type Notifier interface {
	NotifyRenewal(ctx context.Context, sub models.Subscription, daysLeft int) error
}

type SubscriptionService struct {
	txRunner      db.TxRunner
	subscriptions SubscriptionStore
	wallets       WalletReader
	categories    CategoryReader
	recorder      Recorder
	rates         BaseConverter
	notifier      Notifier
	history       HistoryStore
	hub           BalanceHub
	today         func() date.Date
}

func NewSubscriptionService(txRunner db.TxRunner, subscriptions SubscriptionStore, wallets WalletReader, categories CategoryReader, recorder Recorder, rates BaseConverter, notifier Notifier, history HistoryStore, hub BalanceHub) *SubscriptionService {
	return &SubscriptionService{
		txRunner:      txRunner,
		subscriptions: subscriptions,
		wallets:       wallets,
		categories:    categories,
		recorder:      recorder,
		rates:         rates,
		notifier:      notifier,
		history:       history,
		hub:           hub,
		today:         date.Today,
	}
}

type SubscriptionView struct {
	models.Subscription
	DaysUntilRenewal int  `json:"days_until_renewal"`
	ShouldNotify     bool `json:"should_notify"`
}

func (s *SubscriptionService) view(sub models.Subscription) SubscriptionView {
	today := s.today()
	return SubscriptionView{Subscription: sub, DaysUntilRenewal: sub.DaysUntilRenewal(today), ShouldNotify: sub.ShouldNotify(today)}
}

type SubscriptionInput struct {
	Name             string
	AmountMinor      int64
	BillingCycle     recurrence.Cycle
	CategoryID       string
	WalletID         string
	StartDate        date.Date
	NextBillingDate  *date.Date
	EndDate          *date.Date
	NotifyDaysBefore *int
	Description      string
	WebsiteURL       string
	Notes            string
}

func (in SubscriptionInput) validate() error {
	if validator.ValidateName(in.Name) != nil {
		return invalid("name", "required")
	}
	if in.AmountMinor <= 0 {
		return invalid("amount", "positive")
	}
	if in.BillingCycle.Days() == 0 {
		return invalid("billing_cycle", "unknown")
	}
	if in.CategoryID == "" {
		return invalid("category_id", "required")
	}
	if in.WalletID == "" {
		return invalid("wallet_id", "required")
	}
	if in.StartDate.IsZero() {
		return invalid("start_date", "required")
	}
	if in.EndDate != nil && !in.EndDate.After(in.StartDate) {
		return invalid("end_date", "before_start_date")
	}
	if in.NotifyDaysBefore != nil && *in.NotifyDaysBefore < 0 {
		return invalid("notify_days_before", "negative")
	}
	if validator.ValidateURL(in.WebsiteURL) != nil {
		return invalid("website_url", "format")
	}
	return nil
}

func (in SubscriptionInput) apply(sub *models.Subscription) {
	sub.Name = strings.TrimSpace(in.Name)
	sub.Amount = money.Amount(in.AmountMinor)
	sub.BillingCycle = in.BillingCycle
	sub.CategoryID = in.CategoryID
	sub.WalletID = in.WalletID
	sub.StartDate = in.StartDate
	sub.EndDate = in.EndDate
	sub.Description = in.Description
	sub.WebsiteURL = in.WebsiteURL
	sub.Notes = in.Notes
	if in.NextBillingDate != nil {
		sub.NextBillingDate = *in.NextBillingDate
	}
	if in.NotifyDaysBefore != nil {
		sub.NotifyDaysBefore = *in.NotifyDaysBefore
	}
}

func (s *SubscriptionService) Create(ctx context.Context, actor Actor, input SubscriptionInput) (SubscriptionView, error) {
	if err := input.validate(); err != nil {
		return SubscriptionView{}, err
	}
	sub := models.Subscription{
		ID:               uuid.NewString(),
		OwnerID:          actor.OwnerID,
		NextBillingDate:  input.StartDate,
		Status:           models.SubscriptionActive,
		NotifyDaysBefore: 3,
	}
	input.apply(&sub)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.bind(ctx, tx, &sub); err != nil {
			return err
		}
		if err := s.subscriptions.Create(ctx, tx, sub); err != nil {
			return conflict(err, nil)
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionCreate, "subscription", sub.ID, nil, &sub, "Created subscription "+sub.Name)
	})
	if err != nil {
		return SubscriptionView{}, err
	}
	return s.view(sub), nil
}

// bind checks the wallet and category and takes the wallet's currency.
func (s *SubscriptionService) bind(ctx context.Context, tx *sqlx.Tx, sub *models.Subscription) error {
	wallet, err := s.wallets.Get(ctx, sub.OwnerID, sub.WalletID)
	if err != nil {
		if errors.Is(lookup(err), ErrNotFound) {
			return invalid("wallet_id", "unknown")
		}
		return err
	}
	category, err := s.categories.GetTx(ctx, tx, sub.OwnerID, sub.CategoryID)
	if err != nil {
		if errors.Is(lookup(err), ErrNotFound) {
			return invalid("category_id", "unknown")
		}
		return err
	}
	if !category.Kind.Accepts(models.KindExpense) {
		return invalid("category_id", "kind_mismatch")
	}
	sub.Currency = wallet.Currency
	return nil
}

func (s *SubscriptionService) Get(ctx context.Context, ownerID, id string) (SubscriptionView, error) {
	sub, err := s.subscriptions.Get(ctx, ownerID, id)
	if err != nil {
		return SubscriptionView{}, lookup(err)
	}
	return s.view(sub), nil
}

func (s *SubscriptionService) List(ctx context.Context, ownerID string, status models.SubscriptionStatus) ([]SubscriptionView, error) {
	rows, err := s.subscriptions.List(ctx, ownerID, status)
	if err != nil {
		return nil, err
	}
	out := make([]SubscriptionView, 0, len(rows))
	for _, sub := range rows {
		out = append(out, s.view(sub))
	}
	return out, nil
}

func (s *SubscriptionService) Update(ctx context.Context, actor Actor, id string, input SubscriptionInput) (SubscriptionView, error) {
	if err := input.validate(); err != nil {
		return SubscriptionView{}, err
	}
	var updated models.Subscription
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.subscriptions.GetForUpdate(ctx, tx, actor.OwnerID, id)
		if err != nil {
			return lookup(err)
		}
		updated = before
		input.apply(&updated)
		if err := s.bind(ctx, tx, &updated); err != nil {
			return err
		}
		if _, err := s.subscriptions.Update(ctx, tx, updated); err != nil {
			return conflict(err, nil)
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionUpdate, "subscription", id, &before, &updated, "Updated subscription "+updated.Name)
	})
	if err != nil {
		return SubscriptionView{}, err
	}
	return s.view(updated), nil
}

// Delete removes the subscription. Renewal expenses already recorded keep
// their balance effect.
func (s *SubscriptionService) Delete(ctx context.Context, actor Actor, id string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.subscriptions.GetForUpdate(ctx, tx, actor.OwnerID, id)
		if err != nil {
			return lookup(err)
		}
		if _, err := s.subscriptions.Delete(ctx, tx, actor.OwnerID, id); err != nil {
			return err
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionDelete, "subscription", id, &before, nil, "Deleted subscription "+before.Name)
	})
}

func (s *SubscriptionService) Pause(ctx context.Context, actor Actor, id string) (SubscriptionView, error) {
	return s.transition(ctx, actor, id, models.SubscriptionActive, models.SubscriptionPaused)
}

func (s *SubscriptionService) Resume(ctx context.Context, actor Actor, id string) (SubscriptionView, error) {
	return s.transition(ctx, actor, id, models.SubscriptionPaused, models.SubscriptionActive)
}

func (s *SubscriptionService) transition(ctx context.Context, actor Actor, id string, from, to models.SubscriptionStatus) (SubscriptionView, error) {
	var updated models.Subscription
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.subscriptions.GetForUpdate(ctx, tx, actor.OwnerID, id)
		if err != nil {
			return lookup(err)
		}
		if before.Status != from {
			return ErrInvalidStatusTransition
		}
		updated = before
		updated.Status = to
		if err := s.subscriptions.SetStatus(ctx, tx, id, to); err != nil {
			return err
		}
		description := fmt.Sprintf("Subscription %s %s", updated.Name, to)
		return recordHistory(ctx, tx, s.history, actor, models.ActionUpdate, "subscription", id, &before, &updated, description)
	})
	if err != nil {
		return SubscriptionView{}, err
	}
	return s.view(updated), nil
}

type RenewalResult struct {
	Subscription SubscriptionView   `json:"subscription"`
	Expense      models.Transaction `json:"expense"`
}

// Renew bills the subscription once: an expense dated at the current
// billing date is recorded and the billing date moves one cycle forward.
// A next billing date past the end date cancels the subscription.
func (s *SubscriptionService) Renew(ctx context.Context, actor Actor, id string) (RenewalResult, error) {
	var result RenewalResult
	var wallet models.Wallet
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, wallet, err = s.renew(ctx, tx, actor, id)
		return err
	})
	if err != nil {
		return RenewalResult{}, err
	}
	publish(s.hub, actor.OwnerID, wallet)
	return result, nil
}

func (s *SubscriptionService) renew(ctx context.Context, tx *sqlx.Tx, actor Actor, id string) (RenewalResult, models.Wallet, error) {
	before, err := s.subscriptions.GetForUpdate(ctx, tx, actor.OwnerID, id)
	if err != nil {
		return RenewalResult{}, models.Wallet{}, lookup(err)
	}
	if before.Status != models.SubscriptionActive {
		return RenewalResult{}, models.Wallet{}, ErrSubscriptionInactive
	}
	billed := before.NextBillingDate
	expense := models.Transaction{
		ID:             uuid.NewString(),
		OwnerID:        before.OwnerID,
		Kind:           models.KindExpense,
		Title:          before.Name + " - Subscription Renewal",
		Amount:         before.Amount,
		WalletID:       before.WalletID,
		CategoryID:     before.CategoryID,
		Date:           billed,
		Description:    before.Description,
		RecurrenceType: recurrence.None,
		SubscriptionID: &before.ID,
		OccurrenceDate: &billed,
		CreatedBy:      actor.ActorID,
	}
	wallet, err := s.recorder.Record(ctx, tx, actor, &expense)
	if err != nil {
		return RenewalResult{}, models.Wallet{}, err
	}
	next, err := recurrence.NextBilling(billed, before.BillingCycle)
	if err != nil {
		return RenewalResult{}, models.Wallet{}, err
	}
	updated := before
	updated.NextBillingDate = next
	if before.EndDate != nil && next.After(*before.EndDate) {
		updated.Status = models.SubscriptionCancelled
	}
	if err := s.subscriptions.UpdateBilling(ctx, tx, id, updated.NextBillingDate, updated.Status); err != nil {
		return RenewalResult{}, models.Wallet{}, err
	}
	description := fmt.Sprintf("Renewed subscription %s for %s", before.Name, billed)
	if err := recordHistory(ctx, tx, s.history, actor, models.ActionUpdate, "subscription", id, &before, &updated, description); err != nil {
		return RenewalResult{}, models.Wallet{}, err
	}
	return RenewalResult{Subscription: s.view(updated), Expense: expense}, wallet, nil
}

// ProcessRenewals renews every active subscription billed on or before asOf
// once. Each renewal runs in its own transaction.
func (s *SubscriptionService) ProcessRenewals(ctx context.Context, actor Actor, asOf date.Date) (ProcessResult, error) {
	ids, err := s.subscriptions.ListDue(ctx, actor.OwnerID, asOf)
	if err != nil {
		return ProcessResult{}, err
	}
	result := ProcessResult{Failed: []ProcessFailure{}}
	for _, id := range ids {
		_, err := s.Renew(ctx, actor, id)
		switch {
		case errors.Is(err, ErrDuplicate), errors.Is(err, ErrSubscriptionInactive):
			log.Printf("subscription %s skipped: %v", id, err)
		case err != nil:
			log.Printf("subscription %s renewal failed: %v", id, err)
			result.Failed = append(result.Failed, ProcessFailure{ID: id, Error: err.Error()})
		default:
			result.Created++
		}
	}
	return result, nil
}

func (s *SubscriptionService) Upcoming(ctx context.Context, ownerID string, days int) ([]SubscriptionView, error) {
	if days < 0 {
		return nil, invalid("days", "negative")
	}
	today := s.today()
	rows, err := s.subscriptions.ListUpcoming(ctx, ownerID, today, today.AddDays(days))
	if err != nil {
		return nil, err
	}
	out := make([]SubscriptionView, 0, len(rows))
	for _, sub := range rows {
		out = append(out, s.view(sub))
	}
	return out, nil
}

type SubscriptionStats struct {
	Total       int          `json:"total"`
	Active      int          `json:"active"`
	MonthlyCost money.Amount `json:"monthly_cost"`
	YearlyCost  money.Amount `json:"yearly_cost"`
}

// Stats reports the monthly equivalent of active subscriptions in the base
// currency.
func (s *SubscriptionService) Stats(ctx context.Context, ownerID string) (SubscriptionStats, error) {
	rows, err := s.subscriptions.List(ctx, ownerID, "")
	if err != nil {
		return SubscriptionStats{}, err
	}
	stats := SubscriptionStats{Total: len(rows)}
	var monthly int64
	for _, sub := range rows {
		if sub.Status != models.SubscriptionActive {
			continue
		}
		stats.Active++
		base, err := s.rates.ToBase(ctx, int64(sub.Amount), sub.Currency)
		if err != nil {
			return SubscriptionStats{}, err
		}
		perMonth, err := money.DivideMinor(base, decimal.NewFromInt(sub.BillingCycle.Months()))
		if err != nil {
			return SubscriptionStats{}, err
		}
		monthly += perMonth
	}
	stats.MonthlyCost = money.Amount(monthly)
	stats.YearlyCost = money.Amount(monthly * 12)
	return stats, nil
}

type NotifyResult struct {
	Sent   int              `json:"sent"`
	Failed []ProcessFailure `json:"failed"`
}

// NotifyRenewals sends one reminder per billing date for subscriptions inside
// their reminder window.
func (s *SubscriptionService) NotifyRenewals(ctx context.Context, actor Actor, today date.Date) (NotifyResult, error) {
	rows, err := s.subscriptions.ListNotifiable(ctx, actor.OwnerID, today)
	if err != nil {
		return NotifyResult{}, err
	}
	result := NotifyResult{Failed: []ProcessFailure{}}
	for _, sub := range rows {
		if !sub.ShouldNotify(today) {
			continue
		}
		if err := s.notifier.NotifyRenewal(ctx, sub, sub.DaysUntilRenewal(today)); err != nil {
			log.Printf("renewal reminder for %s failed: %v", sub.ID, err)
			result.Failed = append(result.Failed, ProcessFailure{ID: sub.ID, Error: err.Error()})
			continue
		}
		err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			return s.subscriptions.MarkNotified(ctx, tx, sub.ID, today)
		})
		if err != nil {
			result.Failed = append(result.Failed, ProcessFailure{ID: sub.ID, Error: err.Error()})
			continue
		}
		result.Sent++
	}
	return result, nil
}
