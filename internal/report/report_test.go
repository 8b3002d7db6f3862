package report

import (
	"bytes"
	"strings"
	"testing"

	"ledger/internal/date"
	"ledger/internal/models"
	"ledger/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReport() services.MonthlyReport {
	return services.MonthlyReport{
		Month:             2,
		Year:              2025,
		From:              date.MustParse("2025-02-01"),
		To:                date.MustParse("2025-02-28"),
		BaseCurrency:      "USD",
		TotalIncome:       500000,
		TotalExpense:      125050,
		NetSavings:        374950,
		IncomeByCategory:  []services.CategoryAmount{{CategoryID: "c-1", Name: "Salary", Total: 500000, Count: 1}},
		ExpenseByCategory: []services.CategoryAmount{{CategoryID: "c-2", Name: "Food | Drinks", Total: 125050, Count: 7}},
		TopExpenses: []models.Transaction{{
			Title: "Rent", Date: date.MustParse("2025-02-03"), Amount: 169000000, Currency: "RWF", AmountBase: 100000,
		}},
	}
}

func TestWorkbook(t *testing.T) {
	data, err := Workbook(sampleReport())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, categorySheet, topSheet}, f.GetSheetList())
	period, err := f.GetCellValue(summarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "February 2025", period)
	net, err := f.GetCellValue(summarySheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "3749.5", net)

	kind, err := f.GetCellValue(categorySheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "expense", kind)
	title, err := f.GetCellValue(topSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Rent", title)
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleReport())
	assert.True(t, strings.HasPrefix(md, "# Monthly report: February 2025"))
	assert.Contains(t, md, "| **Net savings** | **3749.50** |")
	assert.Contains(t, md, `Food \| Drinks`)
	assert.Contains(t, md, "| 2025-02-03 | Rent |")
}

func TestMarkdownWithoutExpenses(t *testing.T) {
	r := sampleReport()
	r.TopExpenses = nil
	r.IncomeByCategory = nil
	md := Markdown(r)
	assert.Contains(t, md, "_No expenses._")
	assert.Contains(t, md, "## Income by category\n\n_None._")
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "report-2025-02.xlsx", Filename(sampleReport()))
}
