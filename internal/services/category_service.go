package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"ledger/internal/db"
	"ledger/internal/models"
	"ledger/internal/store"
	"ledger/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type CategoryStore interface {
	Create(ctx context.Context, tx store.Execer, c models.Category) error
	Get(ctx context.Context, ownerID, id string) (models.Category, error)
	GetTx(ctx context.Context, tx store.Getter, ownerID, id string) (models.Category, error)
	List(ctx context.Context, ownerID string, kind models.TransactionKind, activeOnly bool) ([]models.Category, error)
	Update(ctx context.Context, tx store.Execer, c models.Category) (int64, error)
	Delete(ctx context.Context, tx store.Execer, ownerID, id string) (int64, error)
	IsReferenced(ctx context.Context, tx store.Getter, id string) (bool, error)
}

type CategoryService struct {
	txRunner   db.TxRunner
	categories CategoryStore
	history    HistoryStore
}

func NewCategoryService(txRunner db.TxRunner, categories CategoryStore, history HistoryStore) *CategoryService {
	return &CategoryService{txRunner: txRunner, categories: categories, history: history}
}

type CategoryInput struct {
	Name        string
	Kind        models.CategoryKind
	ParentID    *string
	Color       string
	Icon        string
	Description string
	IsActive    *bool
}

func (in CategoryInput) validate() error {
	if validator.ValidateName(in.Name) != nil {
		return invalid("name", "required")
	}
	if in.Kind.IsZero() {
		return invalid("category_type", "unknown")
	}
	if in.Color != "" && validator.ValidateColor(in.Color) != nil {
		return invalid("color", "format")
	}
	return nil
}

func (s *CategoryService) Create(ctx context.Context, actor Actor, input CategoryInput) (models.Category, error) {
	if err := input.validate(); err != nil {
		return models.Category{}, err
	}
	c := models.Category{
		ID:          uuid.NewString(),
		OwnerID:     actor.OwnerID,
		Name:        strings.TrimSpace(input.Name),
		Kind:        input.Kind,
		ParentID:    emptyToNil(input.ParentID),
		Color:       input.Color,
		Icon:        input.Icon,
		Description: input.Description,
		IsActive:    input.IsActive == nil || *input.IsActive,
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.checkParent(ctx, tx, c); err != nil {
			return err
		}
		if err := s.categories.Create(ctx, tx, c); err != nil {
			return conflict(err, nil)
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionCreate, "category", c.ID, nil, &c, "Created category "+c.Name)
	})
	if err != nil {
		return models.Category{}, err
	}
	return c, nil
}

func (s *CategoryService) Get(ctx context.Context, ownerID, id string) (models.Category, error) {
	c, err := s.categories.Get(ctx, ownerID, id)
	return c, lookup(err)
}

func (s *CategoryService) List(ctx context.Context, ownerID string, kind models.TransactionKind, activeOnly bool) ([]models.Category, error) {
	return s.categories.List(ctx, ownerID, kind, activeOnly)
}

// Tree nests the owner's active categories under their parents. Categories
// whose parent is missing or inactive become roots.
func (s *CategoryService) Tree(ctx context.Context, ownerID string, kind models.TransactionKind) ([]models.CategoryNode, error) {
	rows, err := s.categories.List(ctx, ownerID, kind, true)
	if err != nil {
		return nil, err
	}
	return buildTree(rows), nil
}

func buildTree(rows []models.Category) []models.CategoryNode {
	known := make(map[string]bool, len(rows))
	for _, c := range rows {
		known[c.ID] = true
	}
	children := make(map[string][]models.Category)
	var roots []models.Category
	for _, c := range rows {
		if c.ParentID != nil && known[*c.ParentID] && *c.ParentID != c.ID {
			children[*c.ParentID] = append(children[*c.ParentID], c)
			continue
		}
		roots = append(roots, c)
	}
	visited := make(map[string]bool, len(rows))
	var build func(list []models.Category) []models.CategoryNode
	build = func(list []models.Category) []models.CategoryNode {
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
		nodes := make([]models.CategoryNode, 0, len(list))
		for _, c := range list {
			if visited[c.ID] {
				continue
			}
			visited[c.ID] = true
			nodes = append(nodes, models.CategoryNode{Category: c, Children: build(children[c.ID])})
		}
		return nodes
	}
	return build(roots)
}

func (s *CategoryService) Update(ctx context.Context, actor Actor, id string, input CategoryInput) (models.Category, error) {
	if err := input.validate(); err != nil {
		return models.Category{}, err
	}
	var updated models.Category
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.categories.GetTx(ctx, tx, actor.OwnerID, id)
		if err != nil {
			return lookup(err)
		}
		updated = before
		updated.Name = strings.TrimSpace(input.Name)
		updated.Kind = input.Kind
		updated.ParentID = emptyToNil(input.ParentID)
		updated.Color = input.Color
		updated.Icon = input.Icon
		updated.Description = input.Description
		if input.IsActive != nil {
			updated.IsActive = *input.IsActive
		}
		if err := s.checkParent(ctx, tx, updated); err != nil {
			return err
		}
		if _, err := s.categories.Update(ctx, tx, updated); err != nil {
			return conflict(err, nil)
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionUpdate, "category", id, &before, &updated, "Updated category "+updated.Name)
	})
	if err != nil {
		return models.Category{}, err
	}
	return updated, nil
}

func (s *CategoryService) Delete(ctx context.Context, actor Actor, id string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		before, err := s.categories.GetTx(ctx, tx, actor.OwnerID, id)
		if err != nil {
			return lookup(err)
		}
		used, err := s.categories.IsReferenced(ctx, tx, id)
		if err != nil {
			return err
		}
		if used {
			return ErrCategoryInUse
		}
		if _, err := s.categories.Delete(ctx, tx, actor.OwnerID, id); err != nil {
			return conflict(err, ErrCategoryInUse)
		}
		return recordHistory(ctx, tx, s.history, actor, models.ActionDelete, "category", id, &before, nil, "Deleted category "+before.Name)
	})
}

// checkParent requires the parent to belong to the owner and rejects a
// parent chain that leads back to c.
func (s *CategoryService) checkParent(ctx context.Context, tx store.Getter, c models.Category) error {
	seen := map[string]bool{c.ID: true}
	for parentID := c.ParentID; parentID != nil; {
		if seen[*parentID] {
			return invalid("parent_id", "cycle")
		}
		seen[*parentID] = true
		parent, err := s.categories.GetTx(ctx, tx, c.OwnerID, *parentID)
		if err != nil {
			if errors.Is(lookup(err), ErrNotFound) {
				return invalid("parent_id", "unknown")
			}
			return err
		}
		parentID = parent.ParentID
	}
	return nil
}

func emptyToNil(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	return value
}
