package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagStoreSetForTransactionReplacesLinks(t *testing.T) {
	ctx := context.Background()
	var queries []string
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			queries = append(queries, query)
			return stubResult{rows: 1}, nil
		},
	}
	err := NewTagStore(stubDB{}).SetForTransaction(ctx, execer, "tx-1", []string{"t-1", "t-2"})
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "DELETE FROM transaction_tags")
	assert.Contains(t, queries[1], "UNNEST($2::text[])")
}

func TestTagStoreSetForTransactionWithoutTags(t *testing.T) {
	ctx := context.Background()
	calls := 0
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			calls++
			if !strings.Contains(query, "DELETE") {
				t.Fatalf("unexpected query: %s", query)
			}
			return stubResult{}, nil
		},
	}
	require.NoError(t, NewTagStore(stubDB{}).SetForTransaction(ctx, execer, "tx-1", nil))
	assert.Equal(t, 1, calls)
}

func TestTagStoreCountOwned(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tags WHERE owner_id = \$1 AND id = ANY\(\$2\)`).
		WithArgs("owner-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := NewTagStore(db).CountOwned(context.Background(), db, "owner-1", []string{"t-1", "t-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
