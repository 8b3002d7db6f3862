package store

import (
	"context"

	"ledger/internal/models"
)

// HistoryStore is append-only: rows are inserted with the mutation they
// describe and never updated or deleted.
type HistoryStore struct {
	db DB
}

type HistoryFilter struct {
	Action     string
	EntityType string
	EntityID   string
	Limit      int
	Offset     int
}

func NewHistoryStore(db DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Insert(ctx context.Context, tx Execer, entry models.HistoryEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transaction_history (id, owner_id, actor_id, action, entity_type, entity_id, old_data, new_data, description, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.OwnerID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		entry.OldData, entry.NewData, entry.Description, entry.IPAddress)
	return err
}

func (s *HistoryStore) List(ctx context.Context, ownerID string, filter HistoryFilter) ([]models.HistoryEntry, error) {
	f := newFilter("owner_id = ?", ownerID)
	if filter.Action != "" {
		f.add("action = ?", filter.Action)
	}
	if filter.EntityType != "" {
		f.add("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		f.add("entity_id = ?", filter.EntityID)
	}
	query := `
		SELECT id, owner_id, actor_id, action, entity_type, entity_id, old_data, new_data, description, ip_address, created_at
		FROM transaction_history` + f.where() + ` ORDER BY created_at DESC` + f.page(filter.Limit, filter.Offset)
	var rows []models.HistoryEntry
	if err := s.db.SelectContext(ctx, &rows, query, f.args...); err != nil {
		return nil, err
	}
	return rows, nil
}
