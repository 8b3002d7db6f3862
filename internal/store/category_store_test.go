package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"ledger/internal/models"
)

func TestCategoryStoreListByKind(t *testing.T) {
	ctx := context.Background()
	store := NewCategoryStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "WHERE owner_id = $1 AND category_type IN ($2, 'both') AND is_active = TRUE") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[1] != "expense" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]models.Category) = []models.Category{{ID: "c-1", Kind: models.DualCategory}}
			return nil
		},
	})
	rows, err := store.List(ctx, "owner-1", models.KindExpense, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Kind != models.DualCategory {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestCategoryStoreCreatePassesKind(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO categories") {
				t.Fatalf("unexpected query: %s", query)
			}
			if args[3] != models.IncomeCategory {
				t.Fatalf("unexpected kind arg: %#v", args[3])
			}
			return stubResult{rows: 1}, nil
		},
	}
	err := NewCategoryStore(stubDB{}).Create(ctx, execer, models.Category{ID: "c-1", OwnerID: "owner-1", Name: "Salary", Kind: models.IncomeCategory})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCategoryStoreIsReferencedChecksChildren(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM categories WHERE parent_id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*bool) = false
			return nil
		},
	}
	used, err := NewCategoryStore(stubDB{}).IsReferenced(ctx, getter, "c-1")
	if err != nil || used {
		t.Fatalf("expected unreferenced category, got %v (%v)", used, err)
	}
}
