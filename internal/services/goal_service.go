package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ledger/internal/date"
	"ledger/internal/db"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/store"
	"ledger/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type GoalStore interface {
	Create(ctx context.Context, tx store.Execer, g models.SavingsGoal) error
	Get(ctx context.Context, ownerID, id string) (models.SavingsGoal, error)
	GetForUpdate(ctx context.Context, tx store.Getter, ownerID, id string) (models.SavingsGoal, error)
	List(ctx context.Context, ownerID string, status models.GoalStatus) ([]models.SavingsGoal, error)
	Update(ctx context.Context, tx store.Execer, g models.SavingsGoal) (int64, error)
	UpdateProgress(ctx context.Context, tx store.Execer, id string, current int64, status models.GoalStatus) error
	Delete(ctx context.Context, tx store.Execer, ownerID, id string) (int64, error)
}

type GoalService struct {
	txRunner db.TxRunner
	goals    GoalStore
	wallets  WalletReader
	history  HistoryStore
}

func NewGoalService(txRunner db.TxRunner, goals GoalStore, wallets WalletReader, history HistoryStore) *GoalService {
	return &GoalService{txRunner: txRunner, goals: goals, wallets: wallets, history: history}
}

type GoalInput struct {
	Name        string
	WalletID    string
	TargetMinor int64
	TargetDate  *date.Date
	Status      models.GoalStatus
	Description string
	Icon        string
}

func (in GoalInput) validate() error {
	if validator.ValidateName(in.Name) != nil {
		return invalid("name", "required")
	}
	if in.WalletID == "" {
		return invalid("wallet_id", "required")
	}
	if in.TargetMinor <= 0 {
		return invalid("target_amount", "positive")
	}
	switch in.Status {
	case "", models.GoalActive, models.GoalCompleted, models.GoalCancelled:
	default:
		return invalid("status", "unknown")
	}
	return nil
}

func (in GoalInput) apply(g *models.SavingsGoal) {
	g.Name = strings.TrimSpace(in.Name)
	g.WalletID = in.WalletID
	g.TargetAmount = money.Amount(in.TargetMinor)
	g.TargetDate = in.TargetDate
	g.Description = in.Description
	g.Icon = in.Icon
	if in.Status != "" {
		g.Status = in.Status
	}
}

func (s *GoalService) checkWallet(ctx context.Context, ownerID, walletID string) error {
	if _, err := s.wallets.Get(ctx, ownerID, walletID); err != nil {
		if errors.Is(lookup(err), ErrNotFound) {
			return invalid("wallet_id", "unknown")
		}
		return err
	}
	return nil
}

func (s *GoalService) Create(ctx context.Context, actor Actor, input GoalInput) (models.GoalView, error) {
	if err := input.validate(); err != nil {
		return models.GoalView{}, err
	}
	if err := s.checkWallet(ctx, actor.OwnerID, input.WalletID); err != nil {
		return models.GoalView{}, err
	}
	g := models.SavingsGoal{ID: uuid.NewString(), OwnerID: actor.OwnerID, Status: models.GoalActive}
	input.apply(&g)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.goals.Create(ctx, tx, g); err != nil {
			return conflict(err, nil)
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionCreate, "goal", g.ID, nil, &g, "Created savings goal "+g.Name)
	})
	if err != nil {
		return models.GoalView{}, err
	}
	return models.NewGoalView(g), nil
}

func (s *GoalService) Get(ctx context.Context, ownerID, id string) (models.GoalView, error) {
	g, err := s.goals.Get(ctx, ownerID, id)
	if err != nil {
		return models.GoalView{}, lookup(err)
	}
	return models.NewGoalView(g), nil
}

func (s *GoalService) List(ctx context.Context, ownerID string, status models.GoalStatus) ([]models.GoalView, error) {
	rows, err := s.goals.List(ctx, ownerID, status)
	if err != nil {
		return nil, err
	}
	out := make([]models.GoalView, 0, len(rows))
	for _, g := range rows {
		out = append(out, models.NewGoalView(g))
	}
	return out, nil
}

func (s *GoalService) Update(ctx context.Context, actor Actor, id string, input GoalInput) (models.GoalView, error) {
	if err := input.validate(); err != nil {
		return models.GoalView{}, err
	}
	if err := s.checkWallet(ctx, actor.OwnerID, input.WalletID); err != nil {
		return models.GoalView{}, err
	}
	var updated models.SavingsGoal
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.goals.GetForUpdate(ctx, tx, actor.OwnerID, id)
		if err != nil {
			return lookup(err)
		}
		updated = before
		input.apply(&updated)
		if _, err := s.goals.Update(ctx, tx, updated); err != nil {
			return conflict(err, nil)
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionUpdate, "goal", id, &before, &updated, "Updated savings goal "+updated.Name)
	})
	if err != nil {
		return models.GoalView{}, err
	}
	return models.NewGoalView(updated), nil
}

func (s *GoalService) Delete(ctx context.Context, actor Actor, id string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.goals.GetForUpdate(ctx, tx, actor.OwnerID, id)
		if err != nil {
			return lookup(err)
		}
		if _, err := s.goals.Delete(ctx, tx, actor.OwnerID, id); err != nil {
			return err
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionDelete, "goal", id, &before, nil, "Deleted savings goal "+before.Name)
	})
}

// Contribute adds amountMinor to the goal's progress. Completion happens
// once, when the total first reaches the target.
func (s *GoalService) Contribute(ctx context.Context, actor Actor, id string, amountMinor int64) (models.GoalView, error) {
	if amountMinor <= 0 {
		return models.GoalView{}, invalid("amount", "positive")
	}
	var updated models.SavingsGoal
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.goals.GetForUpdate(ctx, tx, actor.OwnerID, id)
		if err != nil {
			return lookup(err)
		}
		if before.Status == models.GoalCancelled {
			return ErrGoalCancelled
		}
		updated = before
		completed := updated.AddContribution(money.Amount(amountMinor))
		if err := s.goals.UpdateProgress(ctx, tx, id, int64(updated.CurrentAmount), updated.Status); err != nil {
			return err
		}
		description := fmt.Sprintf("Contributed %s to %s", money.FormatMinor(amountMinor), updated.Name)
		if completed {
			description += " (goal completed)"
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionUpdate, "goal", id, &before, &updated, description)
	})
	if err != nil {
		return models.GoalView{}, err
	}
	return models.NewGoalView(updated), nil
}

type GoalStats struct {
	Total           int             `json:"total"`
	Active          int             `json:"active"`
	Completed       int             `json:"completed"`
	Cancelled       int             `json:"cancelled"`
	AverageProgress decimal.Decimal `json:"average_progress"`
}

// Stats counts goals by status and averages the progress of active ones.
func (s *GoalService) Stats(ctx context.Context, ownerID string) (GoalStats, error) {
	rows, err := s.goals.List(ctx, ownerID, "")
	if err != nil {
		return GoalStats{}, err
	}
	stats := GoalStats{Total: len(rows), AverageProgress: decimal.Zero}
	progress := decimal.Zero
	for _, g := range rows {
		switch g.Status {
		case models.GoalActive:
			stats.Active++
			progress = progress.Add(g.ProgressPercentage())
		case models.GoalCompleted:
			stats.Completed++
		case models.GoalCancelled:
			stats.Cancelled++
		}
	}
	if stats.Active > 0 {
		stats.AverageProgress = progress.Div(decimal.NewFromInt(int64(stats.Active))).Round(2)
	}
	return stats, nil
}
