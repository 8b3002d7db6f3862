package store

import (
	"context"

	"ledger/internal/models"
)

type GoalStore struct {
	db DB
}

const goalColumns = `id, owner_id, name, wallet_id, target_amount, current_amount, target_date, status, description, icon,
	created_at, updated_at`

func NewGoalStore(db DB) *GoalStore {
	return &GoalStore{db: db}
}

func (s *GoalStore) Create(ctx context.Context, tx Execer, g models.SavingsGoal) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO savings_goals (id, owner_id, name, wallet_id, target_amount, current_amount, target_date, status, description, icon)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, g.ID, g.OwnerID, g.Name, g.WalletID, int64(g.TargetAmount), int64(g.CurrentAmount), g.TargetDate, g.Status,
		g.Description, g.Icon)
	return err
}

func (s *GoalStore) Get(ctx context.Context, ownerID, id string) (models.SavingsGoal, error) {
	var row models.SavingsGoal
	err := s.db.GetContext(ctx, &row, `SELECT `+goalColumns+` FROM savings_goals WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return models.SavingsGoal{}, err
	}
	return row, nil
}

func (s *GoalStore) GetForUpdate(ctx context.Context, tx Getter, ownerID, id string) (models.SavingsGoal, error) {
	var row models.SavingsGoal
	err := tx.GetContext(ctx, &row, `
		SELECT `+goalColumns+`
		FROM savings_goals
		WHERE owner_id = $1 AND id = $2
		FOR UPDATE
	`, ownerID, id)
	if err != nil {
		return models.SavingsGoal{}, err
	}
	return row, nil
}

func (s *GoalStore) List(ctx context.Context, ownerID string, status models.GoalStatus) ([]models.SavingsGoal, error) {
	f := newFilter("owner_id = ?", ownerID)
	if status != "" {
		f.add("status = ?", status)
	}
	var rows []models.SavingsGoal
	err := s.db.SelectContext(ctx, &rows, `SELECT `+goalColumns+` FROM savings_goals`+f.where()+` ORDER BY created_at DESC`, f.args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GoalStore) Update(ctx context.Context, tx Execer, g models.SavingsGoal) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE savings_goals
		SET name = $1, wallet_id = $2, target_amount = $3, target_date = $4, status = $5, description = $6,
		    icon = $7, updated_at = NOW()
		WHERE owner_id = $8 AND id = $9
	`, g.Name, g.WalletID, int64(g.TargetAmount), g.TargetDate, g.Status, g.Description, g.Icon, g.OwnerID, g.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateProgress stores the contribution total and status.
func (s *GoalStore) UpdateProgress(ctx context.Context, tx Execer, id string, current int64, status models.GoalStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE savings_goals
		SET current_amount = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`, current, status, id)
	return err
}

func (s *GoalStore) Delete(ctx context.Context, tx Execer, ownerID, id string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM savings_goals WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
