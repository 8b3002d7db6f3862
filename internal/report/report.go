// Package report renders monthly analytics as a spreadsheet or markdown.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"ledger/internal/money"
	"ledger/internal/services"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Summary"
	categorySheet = "Categories"
	topSheet      = "Top expenses"
)

// Filename is the suggested download name for a monthly workbook.
func Filename(r services.MonthlyReport) string {
	return fmt.Sprintf("report-%04d-%02d.xlsx", r.Year, r.Month)
}

// Workbook builds an xlsx file with a summary, a per-category breakdown and
// the top expenses. Amounts are written as numbers in base units.
func Workbook(r services.MonthlyReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(categorySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(topSheet); err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}

	summary := [][]any{
		{"Period", fmt.Sprintf("%s %d", time.Month(r.Month), r.Year)},
		{"From", r.From.String()},
		{"To", r.To.String()},
		{"Base currency", r.BaseCurrency},
		{"Total income", units(r.TotalIncome)},
		{"Total expense", units(r.TotalExpense)},
		{"Net savings", units(r.NetSavings)},
	}
	if err := writeRows(f, summarySheet, 1, summary); err != nil {
		return nil, err
	}
	f.SetColWidth(summarySheet, "A", "A", 18)
	f.SetColWidth(summarySheet, "B", "B", 20)

	if err := writeHeader(f, categorySheet, headerStyle, "Kind", "Category", "Total", "Count"); err != nil {
		return nil, err
	}
	var rows [][]any
	for _, c := range r.IncomeByCategory {
		rows = append(rows, []any{"income", c.Name, units(c.Total), c.Count})
	}
	for _, c := range r.ExpenseByCategory {
		rows = append(rows, []any{"expense", c.Name, units(c.Total), c.Count})
	}
	if err := writeRows(f, categorySheet, 2, rows); err != nil {
		return nil, err
	}
	f.SetColWidth(categorySheet, "B", "B", 24)

	if err := writeHeader(f, topSheet, headerStyle, "Date", "Title", "Amount", "Currency", "Base amount"); err != nil {
		return nil, err
	}
	rows = rows[:0]
	for _, t := range r.TopExpenses {
		rows = append(rows, []any{t.Date.String(), t.Title, units(t.Amount), t.Currency, units(t.AmountBase)})
	}
	if err := writeRows(f, topSheet, 2, rows); err != nil {
		return nil, err
	}
	f.SetColWidth(topSheet, "B", "B", 30)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, style int, headers ...string) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, first int, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, first+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func units(a money.Amount) float64 {
	f, _ := money.ToDecimal(int64(a)).Float64()
	return f
}

// Markdown renders the report as a markdown document.
func Markdown(r services.MonthlyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Monthly report: %s %d\n\n", time.Month(r.Month), r.Year)
	fmt.Fprintf(&b, "%s to %s, amounts in %s.\n\n", r.From, r.To, r.BaseCurrency)
	b.WriteString("| | Amount |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Income | %s |\n", r.TotalIncome)
	fmt.Fprintf(&b, "| Expense | %s |\n", r.TotalExpense)
	fmt.Fprintf(&b, "| **Net savings** | **%s** |\n\n", r.NetSavings)

	writeBreakdown(&b, "Income by category", r.IncomeByCategory)
	writeBreakdown(&b, "Expense by category", r.ExpenseByCategory)

	b.WriteString("## Top expenses\n\n")
	if len(r.TopExpenses) == 0 {
		b.WriteString("_No expenses._\n")
		return b.String()
	}
	b.WriteString("| Date | Title | Amount | Base |\n|---|---|---:|---:|\n")
	for _, t := range r.TopExpenses {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", t.Date, escape(t.Title), money.Label(int64(t.Amount), t.Currency), t.AmountBase)
	}
	return b.String()
}

func writeBreakdown(b *strings.Builder, title string, rows []services.CategoryAmount) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(rows) == 0 {
		b.WriteString("_None._\n\n")
		return
	}
	b.WriteString("| Category | Total | Count |\n|---|---:|---:|\n")
	for _, c := range rows {
		fmt.Fprintf(b, "| %s | %s | %d |\n", escape(c.Name), c.Total, c.Count)
	}
	b.WriteString("\n")
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
