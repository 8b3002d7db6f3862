package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"ledger/internal/date"
	"ledger/internal/db"
	"ledger/internal/exchange"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/recurrence"
	"ledger/internal/store"
	"ledger/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, t models.Transaction) error
	Get(ctx context.Context, ownerID string, kind models.TransactionKind, id string) (models.Transaction, error)
	GetForUpdate(ctx context.Context, tx store.Getter, ownerID string, kind models.TransactionKind, id string) (models.Transaction, error)
	Update(ctx context.Context, tx store.Execer, t models.Transaction) error
	UpdateSchedule(ctx context.Context, tx store.Execer, id string, recurring bool, next, processedOn *date.Date) error
	LastOccurrence(ctx context.Context, tx store.Getter, templateID string) (*date.Date, error)
	Delete(ctx context.Context, tx store.Execer, ownerID, id string) (int64, error)
	List(ctx context.Context, ownerID string, filter store.TransactionFilter) ([]models.Transaction, error)
	ListDue(ctx context.Context, ownerID string, kind models.TransactionKind, asOf date.Date) ([]string, error)
	Stats(ctx context.Context, ownerID string, kind models.TransactionKind, today date.Date) (store.TransactionStats, error)
}

type CategoryReader interface {
	GetTx(ctx context.Context, tx store.Getter, ownerID, id string) (models.Category, error)
}

type TagLinker interface {
	CountOwned(ctx context.Context, tx store.Getter, ownerID string, ids []string) (int, error)
	SetForTransaction(ctx context.Context, tx store.Execer, transactionID string, tagIDs []string) error
	ListForTransaction(ctx context.Context, transactionID string) ([]string, error)
}

// TransactionService records incomes and expenses. Every write moves the
// wallet balance through the WalletLedger in the same database transaction.
type TransactionService struct {
	txRunner     db.TxRunner
	ledger       *WalletLedger
	transactions TransactionStore
	categories   CategoryReader
	tags         TagLinker
	history      HistoryStore
	hub          BalanceHub
}

func NewTransactionService(txRunner db.TxRunner, ledger *WalletLedger, transactions TransactionStore, categories CategoryReader, tags TagLinker, history HistoryStore, hub BalanceHub) *TransactionService {
	return &TransactionService{
		txRunner:     txRunner,
		ledger:       ledger,
		transactions: transactions,
		categories:   categories,
		tags:         tags,
		history:      history,
		hub:          hub,
	}
}

type TransactionInput struct {
	Title             string
	AmountMinor       int64
	WalletID          string
	ProjectID         *string
	CategoryID        string
	TagIDs            []string
	Date              date.Date
	Description       string
	Notes             string
	Attachment        *string
	IsRecurring       bool
	RecurrenceType    recurrence.Type
	RecurrenceEndDate *date.Date
}

func (in TransactionInput) validate() error {
	if validator.ValidateName(in.Title) != nil {
		return invalid("title", "required")
	}
	if in.AmountMinor <= 0 {
		return invalid("amount", "positive")
	}
	if in.WalletID == "" {
		return invalid("wallet_id", "required")
	}
	if in.CategoryID == "" {
		return invalid("category_id", "required")
	}
	if in.Date.IsZero() {
		return invalid("date", "required")
	}
	if in.IsRecurring && in.RecurrenceType == recurrence.None {
		return invalid("recurrence_type", "required")
	}
	if in.RecurrenceEndDate != nil && in.RecurrenceEndDate.Before(in.Date) {
		return invalid("recurrence_end_date", "before_date")
	}
	return nil
}

func (in TransactionInput) apply(t *models.Transaction) {
	t.Title = strings.TrimSpace(in.Title)
	t.Amount = money.Amount(in.AmountMinor)
	t.WalletID = in.WalletID
	t.ProjectID = in.ProjectID
	t.CategoryID = in.CategoryID
	t.TagIDs = uniqueIDs(in.TagIDs)
	t.Date = in.Date
	t.Description = in.Description
	t.Notes = in.Notes
	t.Attachment = in.Attachment
	t.IsRecurring = in.IsRecurring
	t.RecurrenceType = in.RecurrenceType
	t.RecurrenceEndDate = in.RecurrenceEndDate
	if !in.IsRecurring {
		t.RecurrenceType = recurrence.None
		t.RecurrenceEndDate = nil
	}
}

func (s *TransactionService) Create(ctx context.Context, actor Actor, kind models.TransactionKind, input TransactionInput) (models.Transaction, error) {
	if err := input.validate(); err != nil {
		return models.Transaction{}, err
	}
	t := models.Transaction{ID: uuid.NewString(), OwnerID: actor.OwnerID, Kind: kind, CreatedBy: actor.ActorID}
	input.apply(&t)
	if err := advance(&t); err != nil {
		return models.Transaction{}, err
	}
	var wallet models.Wallet
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		wallet, err = s.Record(ctx, tx, actor, &t)
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}
	publish(s.hub, actor.OwnerID, wallet)
	return t, nil
}

// Record persists t inside tx and applies its balance effect. It is the
// shared path for manual entries, recurring occurrences and subscription
// renewals. It returns the wallet after the change.
func (s *TransactionService) Record(ctx context.Context, tx *sqlx.Tx, actor Actor, t *models.Transaction) (models.Wallet, error) {
	wallet, err := s.ledger.Lock(ctx, tx, actor.OwnerID, t.WalletID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.Wallet{}, invalid("wallet_id", "unknown")
		}
		return models.Wallet{}, err
	}
	if err := s.checkReferences(ctx, tx, actor.OwnerID, *t); err != nil {
		return models.Wallet{}, err
	}
	if err := s.price(ctx, tx, t, wallet); err != nil {
		return models.Wallet{}, err
	}
	if err := s.ledger.Apply(ctx, tx, &wallet, t.Delta()); err != nil {
		return models.Wallet{}, err
	}
	if err := s.transactions.Create(ctx, tx, *t); err != nil {
		return models.Wallet{}, conflict(err, nil)
	}
	if err := s.tags.SetForTransaction(ctx, tx, t.ID, t.TagIDs); err != nil {
		return models.Wallet{}, err
	}
	description := fmt.Sprintf("Created %s %s", t.Kind, t.Title)
	if err := recordHistory(ctx, tx, s.history, actor, models.ActionCreate, string(t.Kind), t.ID, nil, t, description); err != nil {
		return models.Wallet{}, err
	}
	return wallet, nil
}

func (s *TransactionService) Update(ctx context.Context, actor Actor, kind models.TransactionKind, id string, input TransactionInput) (models.Transaction, error) {
	if err := input.validate(); err != nil {
		return models.Transaction{}, err
	}
	var updated models.Transaction
	var touched []models.Wallet
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.transactions.GetForUpdate(ctx, tx, actor.OwnerID, kind, id)
		if err != nil {
			return lookup(err)
		}
		updated = before
		input.apply(&updated)
		if input.TagIDs == nil {
			tags, err := s.tags.ListForTransaction(ctx, id)
			if err != nil {
				return err
			}
			before.TagIDs, updated.TagIDs = tags, tags
		}
		if scheduleChanged(before, updated) {
			updated.NextOccurrence = nil
			if err := advance(&updated); err != nil {
				return err
			}
			last, err := s.transactions.LastOccurrence(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := skipMaterialized(&updated, last); err != nil {
				return err
			}
		}
		if err := s.checkReferences(ctx, tx, actor.OwnerID, updated); err != nil {
			return err
		}
		touched, err = s.rebalance(ctx, tx, actor.OwnerID, before, &updated)
		if err != nil {
			return err
		}
		if err := s.transactions.Update(ctx, tx, updated); err != nil {
			return err
		}
		if input.TagIDs != nil {
			if err := s.tags.SetForTransaction(ctx, tx, id, updated.TagIDs); err != nil {
				return err
			}
		}
		description := fmt.Sprintf("Updated %s %s", kind, updated.Title)
		return recordHistory(ctx, tx, s.history, actor, models.ActionUpdate, string(kind), id, &before, &updated, description)
	})
	if err != nil {
		return models.Transaction{}, err
	}
	publish(s.hub, actor.OwnerID, touched...)
	return updated, nil
}

// rebalance reverses before's effect and applies after's. On the same wallet
// only the net difference is applied.
func (s *TransactionService) rebalance(ctx context.Context, tx *sqlx.Tx, ownerID string, before models.Transaction, after *models.Transaction) ([]models.Wallet, error) {
	if before.WalletID == after.WalletID {
		wallet, err := s.ledger.Lock(ctx, tx, ownerID, after.WalletID)
		if err != nil {
			return nil, err
		}
		if err := s.price(ctx, tx, after, wallet); err != nil {
			return nil, err
		}
		if err := s.ledger.Apply(ctx, tx, &wallet, after.Delta()-before.Delta()); err != nil {
			return nil, err
		}
		return []models.Wallet{wallet}, nil
	}
	oldWallet, newWallet, err := s.ledger.LockPair(ctx, tx, ownerID, before.WalletID, after.WalletID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("wallet_id", "unknown")
		}
		return nil, err
	}
	if err := s.price(ctx, tx, after, newWallet); err != nil {
		return nil, err
	}
	if err := s.ledger.Apply(ctx, tx, &oldWallet, -before.Delta()); err != nil {
		return nil, err
	}
	if err := s.ledger.Apply(ctx, tx, &newWallet, after.Delta()); err != nil {
		return nil, err
	}
	return []models.Wallet{oldWallet, newWallet}, nil
}

func (s *TransactionService) Delete(ctx context.Context, actor Actor, kind models.TransactionKind, id string) error {
	var wallet models.Wallet
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.transactions.GetForUpdate(ctx, tx, actor.OwnerID, kind, id)
		if err != nil {
			return lookup(err)
		}
		wallet, err = s.ledger.Lock(ctx, tx, actor.OwnerID, before.WalletID)
		if err != nil {
			return err
		}
		if err := s.ledger.Apply(ctx, tx, &wallet, -before.Delta()); err != nil {
			return err
		}
		if _, err := s.transactions.Delete(ctx, tx, actor.OwnerID, id); err != nil {
			return err
		}
		description := fmt.Sprintf("Deleted %s %s", kind, before.Title)
		return recordHistory(ctx, tx, s.history, actor, models.ActionDelete, string(kind), id, &before, nil, description)
	})
	if err != nil {
		return err
	}
	publish(s.hub, actor.OwnerID, wallet)
	return nil
}

func (s *TransactionService) Get(ctx context.Context, ownerID string, kind models.TransactionKind, id string) (models.Transaction, error) {
	t, err := s.transactions.Get(ctx, ownerID, kind, id)
	if err != nil {
		return models.Transaction{}, lookup(err)
	}
	if t.TagIDs, err = s.tags.ListForTransaction(ctx, id); err != nil {
		return models.Transaction{}, err
	}
	return t, nil
}

func (s *TransactionService) List(ctx context.Context, ownerID string, filter store.TransactionFilter) ([]models.Transaction, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, invalid("end_date", "before_start_date")
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.transactions.List(ctx, ownerID, filter)
}

type TransactionStats struct {
	Total     money.Amount `json:"total"`
	ThisMonth money.Amount `json:"this_month"`
	ThisYear  money.Amount `json:"this_year"`
	Count     int64       `json:"count"`
}

// Stats sums the kind in the base currency.
func (s *TransactionService) Stats(ctx context.Context, ownerID string, kind models.TransactionKind, today date.Date) (TransactionStats, error) {
	stats, err := s.transactions.Stats(ctx, ownerID, kind, today)
	if err != nil {
		return TransactionStats{}, err
	}
	return TransactionStats{
		Total:     money.Amount(stats.Total),
		ThisMonth: money.Amount(stats.ThisMonth),
		ThisYear:  money.Amount(stats.ThisYear),
		Count:     stats.Count,
	}, nil
}

type ProcessFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type ProcessResult struct {
	Created int              `json:"created"`
	Failed  []ProcessFailure `json:"failed"`
}

// ProcessDue materializes one occurrence for every recurring record of kind
// due on or before asOf. Each record runs in its own transaction; the
// schedule advances and last_processed_on is set with the new record, so a
// second run for the same asOf creates nothing.
func (s *TransactionService) ProcessDue(ctx context.Context, actor Actor, kind models.TransactionKind, asOf date.Date) (ProcessResult, error) {
	ids, err := s.transactions.ListDue(ctx, actor.OwnerID, kind, asOf)
	if err != nil {
		return ProcessResult{}, err
	}
	result := ProcessResult{Failed: []ProcessFailure{}}
	for _, id := range ids {
		created, wallet, err := s.processOne(ctx, actor, kind, id, asOf)
		switch {
		case err != nil:
			log.Printf("recurring %s %s failed: %v", kind, id, err)
			result.Failed = append(result.Failed, ProcessFailure{ID: id, Error: err.Error()})
		case created:
			result.Created++
			publish(s.hub, actor.OwnerID, wallet)
		}
	}
	return result, nil
}

func (s *TransactionService) processOne(ctx context.Context, actor Actor, kind models.TransactionKind, id string, asOf date.Date) (bool, models.Wallet, error) {
	var created bool
	var wallet models.Wallet
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		created = false
		template, err := s.transactions.GetForUpdate(ctx, tx, actor.OwnerID, kind, id)
		if err != nil {
			return lookup(err)
		}
		if !template.Schedule().Due(asOf) {
			return nil
		}
		if template.LastProcessedOn != nil && !template.LastProcessedOn.Before(asOf) {
			return nil
		}
		last, err := s.transactions.LastOccurrence(ctx, tx, template.ID)
		if err != nil {
			return err
		}
		if err := skipMaterialized(&template, last); err != nil {
			return err
		}
		if !template.Schedule().Due(asOf) {
			return s.transactions.UpdateSchedule(ctx, tx, template.ID, template.IsRecurring, template.NextOccurrence, template.LastProcessedOn)
		}
		occurrence := *template.NextOccurrence
		tags, err := s.tags.ListForTransaction(ctx, template.ID)
		if err != nil {
			return err
		}
		child := models.Transaction{
			ID:             uuid.NewString(),
			OwnerID:        template.OwnerID,
			Kind:           template.Kind,
			Title:          template.Title + " (Recurring)",
			Amount:         template.Amount,
			WalletID:       template.WalletID,
			ProjectID:      template.ProjectID,
			CategoryID:     template.CategoryID,
			TagIDs:         tags,
			Date:           occurrence,
			Description:    template.Description,
			Notes:          template.Notes,
			RecurrenceType: recurrence.None,
			SourceID:       &template.ID,
			OccurrenceDate: &occurrence,
			CreatedBy:      actor.ActorID,
		}
		wallet, err = s.Record(ctx, tx, actor, &child)
		if err != nil {
			return err
		}
		next, err := recurrence.Advance(template.Schedule())
		if err != nil {
			return err
		}
		processed := asOf
		if err := s.transactions.UpdateSchedule(ctx, tx, template.ID, next.Recurring, next.Next, &processed); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, wallet, err
}

// checkReferences validates category kind and tag ownership.
func (s *TransactionService) checkReferences(ctx context.Context, tx *sqlx.Tx, ownerID string, t models.Transaction) error {
	category, err := s.categories.GetTx(ctx, tx, ownerID, t.CategoryID)
	if err != nil {
		if errors.Is(lookup(err), ErrNotFound) {
			return invalid("category_id", "unknown")
		}
		return err
	}
	if !category.Kind.Accepts(t.Kind) {
		return invalid("category_id", "kind_mismatch")
	}
	if len(t.TagIDs) == 0 {
		return nil
	}
	owned, err := s.tags.CountOwned(ctx, tx, ownerID, t.TagIDs)
	if err != nil {
		return err
	}
	if owned != len(t.TagIDs) {
		return invalid("tag_ids", "unknown")
	}
	return nil
}

// price copies the wallet currency onto t and computes its base amount.
func (s *TransactionService) price(ctx context.Context, tx *sqlx.Tx, t *models.Transaction, wallet models.Wallet) error {
	cur, err := s.ledger.currencies.GetTx(ctx, tx, wallet.Currency)
	if err != nil {
		return lookup(err)
	}
	base, err := exchange.BaseAmount(int64(t.Amount), cur)
	if err != nil {
		return err
	}
	t.Currency = wallet.Currency
	t.AmountBase = money.Amount(base)
	return nil
}

// advance sets the first occurrence of a new or rescheduled template.
func advance(t *models.Transaction) error {
	if !t.IsRecurring {
		t.NextOccurrence = nil
		return nil
	}
	schedule, err := recurrence.Advance(t.Schedule())
	if err != nil {
		return invalid("recurrence_type", "unknown")
	}
	t.IsRecurring, t.NextOccurrence = schedule.Recurring, schedule.Next
	return nil
}

// skipMaterialized moves the schedule past occurrences that already exist,
// so a rescheduled template never replays a date it produced before.
func skipMaterialized(t *models.Transaction, last *date.Date) error {
	for last != nil && t.IsRecurring && t.NextOccurrence != nil && !t.NextOccurrence.After(*last) {
		schedule, err := recurrence.Advance(t.Schedule())
		if err != nil {
			return invalid("recurrence_type", "unknown")
		}
		t.IsRecurring, t.NextOccurrence = schedule.Recurring, schedule.Next
	}
	return nil
}

func scheduleChanged(before, after models.Transaction) bool {
	if before.IsRecurring != after.IsRecurring || before.RecurrenceType != after.RecurrenceType {
		return true
	}
	if !before.Date.Equal(after.Date) {
		return true
	}
	switch {
	case before.RecurrenceEndDate == nil && after.RecurrenceEndDate == nil:
		return false
	case before.RecurrenceEndDate == nil || after.RecurrenceEndDate == nil:
		return true
	}
	return !before.RecurrenceEndDate.Equal(*after.RecurrenceEndDate)
}

func uniqueIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
