package store

import (
	"context"

	"ledger/internal/date"
	"ledger/internal/models"
)

// TransactionStore persists incomes and expenses in one table keyed by kind.
type TransactionStore struct {
	db DB
}

type TransactionFilter struct {
	Kind       models.TransactionKind
	WalletID   string
	ProjectID  string
	CategoryID string
	Recurring  *bool
	From       *date.Date
	To         *date.Date
	Limit      int
	Offset     int
}

type TransactionStats struct {
	Total     int64 `db:"total"`
	ThisMonth int64 `db:"this_month"`
	ThisYear  int64 `db:"this_year"`
	Count     int64 `db:"count"`
}

const transactionColumns = `id, owner_id, kind, title, amount, amount_base, currency, wallet_id, project_id, category_id,
	date, description, notes, attachment, is_recurring, recurrence_type, recurrence_end_date, next_occurrence,
	last_processed_on, source_id, occurrence_date, subscription_id, created_by, created_at, updated_at`

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Create(ctx context.Context, tx Execer, t models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_transactions (id, owner_id, kind, title, amount, amount_base, currency, wallet_id, project_id,
			category_id, date, description, notes, attachment, is_recurring, recurrence_type, recurrence_end_date,
			next_occurrence, last_processed_on, source_id, occurrence_date, subscription_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`, t.ID, t.OwnerID, t.Kind, t.Title, int64(t.Amount), int64(t.AmountBase), t.Currency, t.WalletID, t.ProjectID,
		t.CategoryID, t.Date, t.Description, t.Notes, t.Attachment, t.IsRecurring, t.RecurrenceType, t.RecurrenceEndDate,
		t.NextOccurrence, t.LastProcessedOn, t.SourceID, t.OccurrenceDate, t.SubscriptionID, t.CreatedBy)
	return err
}

func (s *TransactionStore) Get(ctx context.Context, ownerID string, kind models.TransactionKind, id string) (models.Transaction, error) {
	var row models.Transaction
	err := s.db.GetContext(ctx, &row, `
		SELECT `+transactionColumns+`
		FROM ledger_transactions
		WHERE owner_id = $1 AND kind = $2 AND id = $3
	`, ownerID, kind, id)
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

// GetForUpdate locks the record so concurrent edits and recurrence runs
// serialize on it.
func (s *TransactionStore) GetForUpdate(ctx context.Context, tx Getter, ownerID string, kind models.TransactionKind, id string) (models.Transaction, error) {
	var row models.Transaction
	err := tx.GetContext(ctx, &row, `
		SELECT `+transactionColumns+`
		FROM ledger_transactions
		WHERE owner_id = $1 AND kind = $2 AND id = $3
		FOR UPDATE
	`, ownerID, kind, id)
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

func (s *TransactionStore) Update(ctx context.Context, tx Execer, t models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE ledger_transactions
		SET title = $1, amount = $2, amount_base = $3, currency = $4, wallet_id = $5, project_id = $6,
		    category_id = $7, date = $8, description = $9, notes = $10, attachment = $11, is_recurring = $12,
		    recurrence_type = $13, recurrence_end_date = $14, next_occurrence = $15, updated_at = NOW()
		WHERE owner_id = $16 AND id = $17
	`, t.Title, int64(t.Amount), int64(t.AmountBase), t.Currency, t.WalletID, t.ProjectID,
		t.CategoryID, t.Date, t.Description, t.Notes, t.Attachment, t.IsRecurring,
		t.RecurrenceType, t.RecurrenceEndDate, t.NextOccurrence, t.OwnerID, t.ID)
	return err
}

// UpdateSchedule persists the recurrence state after a materialization run.
func (s *TransactionStore) UpdateSchedule(ctx context.Context, tx Execer, id string, recurring bool, next, processedOn *date.Date) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE ledger_transactions
		SET is_recurring = $1, next_occurrence = $2, last_processed_on = $3, updated_at = NOW()
		WHERE id = $4
	`, recurring, next, processedOn, id)
	return err
}

// LastOccurrence returns the latest occurrence date materialized from the
// template, or nil when none exists.
func (s *TransactionStore) LastOccurrence(ctx context.Context, tx Getter, templateID string) (*date.Date, error) {
	var last *date.Date
	err := tx.GetContext(ctx, &last, `SELECT MAX(occurrence_date) FROM ledger_transactions WHERE source_id = $1`, templateID)
	if err != nil {
		return nil, err
	}
	return last, nil
}

func (s *TransactionStore) Delete(ctx context.Context, tx Execer, ownerID, id string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM ledger_transactions WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TransactionStore) List(ctx context.Context, ownerID string, filter TransactionFilter) ([]models.Transaction, error) {
	f := newFilter("owner_id = ?", ownerID)
	if filter.Kind != "" {
		f.add("kind = ?", filter.Kind)
	}
	if filter.WalletID != "" {
		f.add("wallet_id = ?", filter.WalletID)
	}
	if filter.ProjectID != "" {
		f.add("project_id = ?", filter.ProjectID)
	}
	if filter.CategoryID != "" {
		f.add("category_id = ?", filter.CategoryID)
	}
	if filter.Recurring != nil {
		f.add("is_recurring = ?", *filter.Recurring)
	}
	if filter.From != nil {
		f.add("date >= ?", *filter.From)
	}
	if filter.To != nil {
		f.add("date <= ?", *filter.To)
	}
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions` + f.where() +
		` ORDER BY date DESC, created_at DESC` + f.page(filter.Limit, filter.Offset)
	var rows []models.Transaction
	if err := s.db.SelectContext(ctx, &rows, query, f.args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListDue returns ids of recurring templates with an occurrence on or before
// asOf that were not already processed for asOf.
func (s *TransactionStore) ListDue(ctx context.Context, ownerID string, kind models.TransactionKind, asOf date.Date) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id
		FROM ledger_transactions
		WHERE owner_id = $1 AND kind = $2 AND is_recurring = TRUE
		  AND next_occurrence IS NOT NULL AND next_occurrence <= $3
		  AND (last_processed_on IS NULL OR last_processed_on < $3)
		ORDER BY next_occurrence, id
	`, ownerID, kind, asOf)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *TransactionStore) Stats(ctx context.Context, ownerID string, kind models.TransactionKind, today date.Date) (TransactionStats, error) {
	var stats TransactionStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT COALESCE(SUM(amount_base), 0) AS total,
		       COALESCE(SUM(amount_base) FILTER (WHERE date >= $3 AND date <= $5), 0) AS this_month,
		       COALESCE(SUM(amount_base) FILTER (WHERE date >= $4 AND date <= $5), 0) AS this_year,
		       COUNT(*) AS count
		FROM ledger_transactions
		WHERE owner_id = $1 AND kind = $2
	`, ownerID, kind, today.StartOfMonth(), today.StartOfYear(), today)
	return stats, err
}
