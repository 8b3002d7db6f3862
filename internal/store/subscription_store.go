package store

import (
	"context"

	"ledger/internal/date"
	"ledger/internal/models"
)

type SubscriptionStore struct {
	db DB
}

const subscriptionColumns = `id, owner_id, name, amount, currency, billing_cycle, category_id, wallet_id, start_date,
	next_billing_date, end_date, status, notify_days_before, last_notified_on, description, website_url, notes,
	created_at, updated_at`

func NewSubscriptionStore(db DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func (s *SubscriptionStore) Create(ctx context.Context, tx Execer, sub models.Subscription) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO subscriptions (id, owner_id, name, amount, currency, billing_cycle, category_id, wallet_id,
			start_date, next_billing_date, end_date, status, notify_days_before, description, website_url, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, sub.ID, sub.OwnerID, sub.Name, int64(sub.Amount), sub.Currency, sub.BillingCycle, sub.CategoryID, sub.WalletID,
		sub.StartDate, sub.NextBillingDate, sub.EndDate, sub.Status, sub.NotifyDaysBefore, sub.Description,
		sub.WebsiteURL, sub.Notes)
	return err
}

func (s *SubscriptionStore) Get(ctx context.Context, ownerID, id string) (models.Subscription, error) {
	var row models.Subscription
	err := s.db.GetContext(ctx, &row, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE owner_id = $1 AND id = $2
	`, ownerID, id)
	if err != nil {
		return models.Subscription{}, err
	}
	return row, nil
}

// GetForUpdate locks the subscription so renewals of the same record serialize.
func (s *SubscriptionStore) GetForUpdate(ctx context.Context, tx Getter, ownerID, id string) (models.Subscription, error) {
	var row models.Subscription
	err := tx.GetContext(ctx, &row, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE owner_id = $1 AND id = $2
		FOR UPDATE
	`, ownerID, id)
	if err != nil {
		return models.Subscription{}, err
	}
	return row, nil
}

func (s *SubscriptionStore) List(ctx context.Context, ownerID string, status models.SubscriptionStatus) ([]models.Subscription, error) {
	f := newFilter("owner_id = ?", ownerID)
	if status != "" {
		f.add("status = ?", status)
	}
	var rows []models.Subscription
	err := s.db.SelectContext(ctx, &rows, `SELECT `+subscriptionColumns+` FROM subscriptions`+f.where()+
		` ORDER BY next_billing_date, name`, f.args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SubscriptionStore) Update(ctx context.Context, tx Execer, sub models.Subscription) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE subscriptions
		SET name = $1, amount = $2, currency = $3, billing_cycle = $4, category_id = $5, wallet_id = $6,
		    next_billing_date = $7, end_date = $8, notify_days_before = $9, description = $10,
		    website_url = $11, notes = $12, updated_at = NOW()
		WHERE owner_id = $13 AND id = $14
	`, sub.Name, int64(sub.Amount), sub.Currency, sub.BillingCycle, sub.CategoryID, sub.WalletID,
		sub.NextBillingDate, sub.EndDate, sub.NotifyDaysBefore, sub.Description,
		sub.WebsiteURL, sub.Notes, sub.OwnerID, sub.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateBilling stores the schedule and status after a renewal.
func (s *SubscriptionStore) UpdateBilling(ctx context.Context, tx Execer, id string, next date.Date, status models.SubscriptionStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE subscriptions
		SET next_billing_date = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`, next, status, id)
	return err
}

func (s *SubscriptionStore) SetStatus(ctx context.Context, tx Execer, id string, status models.SubscriptionStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE subscriptions SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

func (s *SubscriptionStore) Delete(ctx context.Context, tx Execer, ownerID, id string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListDue returns ids of active subscriptions billed on or before asOf.
func (s *SubscriptionStore) ListDue(ctx context.Context, ownerID string, asOf date.Date) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id
		FROM subscriptions
		WHERE owner_id = $1 AND status = 'active' AND next_billing_date <= $2
		ORDER BY next_billing_date, id
	`, ownerID, asOf)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListUpcoming returns active subscriptions billed within [from, until].
func (s *SubscriptionStore) ListUpcoming(ctx context.Context, ownerID string, from, until date.Date) ([]models.Subscription, error) {
	var rows []models.Subscription
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE owner_id = $1 AND status = 'active' AND next_billing_date BETWEEN $2 AND $3
		ORDER BY next_billing_date, name
	`, ownerID, from, until)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListNotifiable returns active subscriptions inside their reminder window
// that were not reminded since the window opened.
func (s *SubscriptionStore) ListNotifiable(ctx context.Context, ownerID string, today date.Date) ([]models.Subscription, error) {
	var rows []models.Subscription
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE owner_id = $1 AND status = 'active'
		  AND next_billing_date - notify_days_before <= $2
		  AND (last_notified_on IS NULL OR last_notified_on < next_billing_date - notify_days_before)
		ORDER BY next_billing_date, name
	`, ownerID, today)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SubscriptionStore) MarkNotified(ctx context.Context, tx Execer, id string, on date.Date) error {
	_, err := tx.ExecContext(ctx, `UPDATE subscriptions SET last_notified_on = $1 WHERE id = $2`, on, id)
	return err
}
