package store

import (
	"context"

	"ledger/internal/models"

	"github.com/lib/pq"
)

type TagStore struct {
	db DB
}

const tagColumns = `id, owner_id, name, color, is_active, created_at`

func NewTagStore(db DB) *TagStore {
	return &TagStore{db: db}
}

func (s *TagStore) Create(ctx context.Context, tx Execer, t models.Tag) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tags (id, owner_id, name, color, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.OwnerID, t.Name, t.Color, t.IsActive)
	return err
}

func (s *TagStore) Get(ctx context.Context, ownerID, id string) (models.Tag, error) {
	var row models.Tag
	err := s.db.GetContext(ctx, &row, `SELECT `+tagColumns+` FROM tags WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return models.Tag{}, err
	}
	return row, nil
}

func (s *TagStore) List(ctx context.Context, ownerID string, activeOnly bool) ([]models.Tag, error) {
	f := newFilter("owner_id = ?", ownerID)
	if activeOnly {
		f.add("is_active = TRUE")
	}
	var rows []models.Tag
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+tagColumns+` FROM tags`+f.where()+` ORDER BY name`, f.args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TagStore) Update(ctx context.Context, tx Execer, t models.Tag) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE tags SET name = $1, color = $2, is_active = $3
		WHERE owner_id = $4 AND id = $5
	`, t.Name, t.Color, t.IsActive, t.OwnerID, t.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TagStore) Delete(ctx context.Context, tx Execer, ownerID, id string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountOwned counts how many of ids are tags of the owner.
func (s *TagStore) CountOwned(ctx context.Context, tx Getter, ownerID string, ids []string) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM tags WHERE owner_id = $1 AND id = ANY($2)
	`, ownerID, pq.Array(ids))
	return count, err
}

// SetForTransaction replaces the tag links of a transaction.
func (s *TagStore) SetForTransaction(ctx context.Context, tx Execer, transactionID string, tagIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM transaction_tags WHERE transaction_id = $1`, transactionID); err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transaction_tags (transaction_id, tag_id)
		SELECT $1, UNNEST($2::text[])
		ON CONFLICT DO NOTHING
	`, transactionID, pq.Array(tagIDs))
	return err
}

func (s *TagStore) ListForTransaction(ctx context.Context, transactionID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT tag_id FROM transaction_tags WHERE transaction_id = $1 ORDER BY tag_id
	`, transactionID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
