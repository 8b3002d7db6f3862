package services

import (
	"context"
	"strings"

	"ledger/internal/db"
	"ledger/internal/models"
	"ledger/internal/store"
	"ledger/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TagStore interface {
	Create(ctx context.Context, tx store.Execer, t models.Tag) error
	Get(ctx context.Context, ownerID, id string) (models.Tag, error)
	List(ctx context.Context, ownerID string, activeOnly bool) ([]models.Tag, error)
	Update(ctx context.Context, tx store.Execer, t models.Tag) (int64, error)
	Delete(ctx context.Context, tx store.Execer, ownerID, id string) (int64, error)
}

type TagService struct {
	txRunner db.TxRunner
	tags     TagStore
	history  HistoryStore
}

func NewTagService(txRunner db.TxRunner, tags TagStore, history HistoryStore) *TagService {
	return &TagService{txRunner: txRunner, tags: tags, history: history}
}

type TagInput struct {
	Name     string
	Color    string
	IsActive *bool
}

func (in TagInput) validate() error {
	if validator.ValidateName(in.Name) != nil {
		return invalid("name", "required")
	}
	if in.Color != "" && validator.ValidateColor(in.Color) != nil {
		return invalid("color", "format")
	}
	return nil
}

func (s *TagService) Create(ctx context.Context, actor Actor, input TagInput) (models.Tag, error) {
	if err := input.validate(); err != nil {
		return models.Tag{}, err
	}
	tag := models.Tag{
		ID:       uuid.NewString(),
		OwnerID:  actor.OwnerID,
		Name:     strings.TrimSpace(input.Name),
		Color:    input.Color,
		IsActive: input.IsActive == nil || *input.IsActive,
	}
	if tag.Color == "" {
		tag.Color = "#6c757d"
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.tags.Create(ctx, tx, tag); err != nil {
			return conflict(err, nil)
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionCreate, "tag", tag.ID, nil, &tag, "Created tag "+tag.Name)
	})
	if err != nil {
		return models.Tag{}, err
	}
	return tag, nil
}

func (s *TagService) Get(ctx context.Context, ownerID, id string) (models.Tag, error) {
	tag, err := s.tags.Get(ctx, ownerID, id)
	return tag, lookup(err)
}

func (s *TagService) List(ctx context.Context, ownerID string, activeOnly bool) ([]models.Tag, error) {
	return s.tags.List(ctx, ownerID, activeOnly)
}

func (s *TagService) Update(ctx context.Context, actor Actor, id string, input TagInput) (models.Tag, error) {
	if err := input.validate(); err != nil {
		return models.Tag{}, err
	}
	before, err := s.tags.Get(ctx, actor.OwnerID, id)
	if err != nil {
		return models.Tag{}, lookup(err)
	}
	updated := before
	updated.Name = strings.TrimSpace(input.Name)
	if input.Color != "" {
		updated.Color = input.Color
	}
	if input.IsActive != nil {
		updated.IsActive = *input.IsActive
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.tags.Update(ctx, tx, updated)
		if err != nil {
			return conflict(err, nil)
		}
		if rows == 0 {
			return ErrNotFound
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionUpdate, "tag", id, &before, &updated, "Updated tag "+updated.Name)
	})
	if err != nil {
		return models.Tag{}, err
	}
	return updated, nil
}

// Delete removes the tag and its links; tagged records stay.
func (s *TagService) Delete(ctx context.Context, actor Actor, id string) error {
	before, err := s.tags.Get(ctx, actor.OwnerID, id)
	if err != nil {
		return lookup(err)
	}
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.tags.Delete(ctx, tx, actor.OwnerID, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNotFound
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionDelete, "tag", id, &before, nil, "Deleted tag "+before.Name)
	})
}
