package store

import (
	"context"
	"testing"

	"ledger/internal/date"
	"ledger/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetStoreSpentByCategory(t *testing.T) {
	db, mock := setupMockDB(t)
	category := "travel"
	mock.ExpectQuery(`SELECT currency, SUM\(amount\) AS total, SUM\(amount_base\) AS total_base FROM ledger_transactions WHERE owner_id = \$1 AND kind = 'expense' AND date BETWEEN \$2 AND \$3 AND category_id = \$4 GROUP BY currency`).
		WithArgs("owner-1", "2025-01-01", "2025-01-31", "travel").
		WillReturnRows(sqlmock.NewRows([]string{"currency", "total", "total_base"}).
			AddRow("RWF", int64(50000), int64(30)).
			AddRow("USD", int64(52000), int64(52000)))

	spent, err := NewBudgetStore(db).Spent(context.Background(), models.Budget{
		OwnerID: "owner-1", Type: models.BudgetCategory, CategoryID: &category,
		StartDate: date.MustParse("2025-01-01"), EndDate: date.MustParse("2025-01-31"),
	})
	require.NoError(t, err)
	assert.Equal(t, []CurrencyTotal{
		{Currency: "RWF", Total: 50000, TotalBase: 30},
		{Currency: "USD", Total: 52000, TotalBase: 52000},
	}, spent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetStoreSpentMonthlyIgnoresBindings(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(`date BETWEEN \$2 AND \$3 GROUP BY currency ORDER BY currency$`).
		WithArgs("owner-1", "2025-02-01", "2025-02-28").
		WillReturnRows(sqlmock.NewRows([]string{"currency", "total", "total_base"}))

	spent, err := NewBudgetStore(db).Spent(context.Background(), models.Budget{
		OwnerID: "owner-1", Type: models.BudgetMonthly,
		StartDate: date.MustParse("2025-02-01"), EndDate: date.MustParse("2025-02-28"),
	})
	require.NoError(t, err)
	assert.Empty(t, spent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetStoreListCurrent(t *testing.T) {
	db, mock := setupMockDB(t)
	columns := []string{"id", "owner_id", "name", "budget_type", "project_id", "category_id", "amount", "currency",
		"start_date", "end_date", "alert_threshold", "description", "is_active", "created_at", "updated_at"}
	mock.ExpectQuery(`FROM budgets\s+WHERE owner_id = \$1 AND is_active = TRUE AND start_date <= \$2 AND end_date >= \$2`).
		WithArgs("owner-1", "2025-01-15").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"b-1", "owner-1", "Travel", "category", nil, "travel", int64(50000), "USD",
			"2025-01-01", "2025-01-31", 80, "", true, date.MustParse("2025-01-01").Time(), date.MustParse("2025-01-01").Time(),
		))

	rows, err := NewBudgetStore(db).ListCurrent(context.Background(), "owner-1", date.MustParse("2025-01-15"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.BudgetCategory, rows[0].Type)
	assert.Equal(t, date.MustParse("2025-01-31"), rows[0].EndDate)
	require.NotNil(t, rows[0].CategoryID)
	assert.Equal(t, "travel", *rows[0].CategoryID)
	require.NoError(t, mock.ExpectationsWereMet())
}
