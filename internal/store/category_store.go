package store

import (
	"context"

	"ledger/internal/models"
)

type CategoryStore struct {
	db DB
}

const categoryColumns = `id, owner_id, name, category_type, parent_id, color, icon, description, is_active, created_at`

func NewCategoryStore(db DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) Create(ctx context.Context, tx Execer, c models.Category) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, category_type, parent_id, color, icon, description, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.OwnerID, c.Name, c.Kind, c.ParentID, c.Color, c.Icon, c.Description, c.IsActive)
	return err
}

func (s *CategoryStore) Get(ctx context.Context, ownerID, id string) (models.Category, error) {
	var row models.Category
	err := s.db.GetContext(ctx, &row, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE owner_id = $1 AND id = $2
	`, ownerID, id)
	if err != nil {
		return models.Category{}, err
	}
	return row, nil
}

// GetTx reads a category inside a running transaction.
func (s *CategoryStore) GetTx(ctx context.Context, tx Getter, ownerID, id string) (models.Category, error) {
	var row models.Category
	err := tx.GetContext(ctx, &row, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE owner_id = $1 AND id = $2
	`, ownerID, id)
	if err != nil {
		return models.Category{}, err
	}
	return row, nil
}

// List returns the owner's categories. A non-zero kind keeps only categories
// usable for that transaction kind.
func (s *CategoryStore) List(ctx context.Context, ownerID string, kind models.TransactionKind, activeOnly bool) ([]models.Category, error) {
	f := newFilter("owner_id = ?", ownerID)
	if kind != "" {
		f.add("category_type IN (?, 'both')", string(kind))
	}
	if activeOnly {
		f.add("is_active = TRUE")
	}
	var rows []models.Category
	err := s.db.SelectContext(ctx, &rows, `SELECT `+categoryColumns+` FROM categories`+f.where()+` ORDER BY name`, f.args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *CategoryStore) Update(ctx context.Context, tx Execer, c models.Category) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE categories
		SET name = $1, category_type = $2, parent_id = $3, color = $4, icon = $5, description = $6, is_active = $7
		WHERE owner_id = $8 AND id = $9
	`, c.Name, c.Kind, c.ParentID, c.Color, c.Icon, c.Description, c.IsActive, c.OwnerID, c.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *CategoryStore) Delete(ctx context.Context, tx Execer, ownerID, id string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IsReferenced reports whether transactions, subscriptions, budgets or child
// categories still point at the category.
func (s *CategoryStore) IsReferenced(ctx context.Context, tx Getter, id string) (bool, error) {
	var used bool
	err := tx.GetContext(ctx, &used, `
		SELECT EXISTS (SELECT 1 FROM ledger_transactions WHERE category_id = $1)
		    OR EXISTS (SELECT 1 FROM subscriptions WHERE category_id = $1)
		    OR EXISTS (SELECT 1 FROM budgets WHERE category_id = $1)
		    OR EXISTS (SELECT 1 FROM categories WHERE parent_id = $1)
	`, id)
	return used, err
}
