package services

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"lifehub/internal/core"
)

const (
	expensesSheet = "Expenses"
	summarySheet  = "Summary"
)

// ExportExpenses writes an XLSX workbook with one row per expense and a
// summary sheet holding the snapshot.
func (g *Gateway) ExportExpenses(ctx context.Context, ownerID string, w io.Writer) error {
	const op = "export expenses"
	view, err := g.BudgetView(ctx, ownerID)
	if err != nil {
		return err
	}

	f, err := BuildWorkbook(view)
	if err != nil {
		g.logFailure(ctx, op, err)
		return core.E(core.KindWriteFailed, op, err)
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		g.logFailure(ctx, op, err)
		return core.E(core.KindWriteFailed, op, err)
	}
	return nil
}

// BuildWorkbook lays out the budget view as a two-sheet workbook.
func BuildWorkbook(view BudgetView) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", expensesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	headers := []string{"Date", "Name", "Category", "Amount"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(expensesSheet, cell, h)
	}
	for i, e := range view.Expenses {
		row := i + 2
		f.SetCellValue(expensesSheet, fmt.Sprintf("A%d", row), e.CreatedAt.Format("2006-01-02"))
		f.SetCellValue(expensesSheet, fmt.Sprintf("B%d", row), e.Name)
		f.SetCellValue(expensesSheet, fmt.Sprintf("C%d", row), e.Category.Label())
		f.SetCellValue(expensesSheet, fmt.Sprintf("D%d", row), e.Amount.Float64())
	}
	f.SetColWidth(expensesSheet, "A", "A", 12)
	f.SetColWidth(expensesSheet, "B", "B", 30)
	f.SetColWidth(expensesSheet, "C", "C", 16)
	f.SetColWidth(expensesSheet, "D", "D", 12)

	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	s := view.Snapshot
	rows := [][2]any{
		{"Income", s.Income.Float64()},
		{"Expenses", s.TotalExpenses.Float64()},
		{"Savings", s.Savings.Float64()},
		{"", ""},
	}
	for _, ca := range s.CategoryTotals.Rows() {
		rows = append(rows, [2]any{ca.Category.Label(), ca.Amount.Float64()})
	}
	if !s.Uncategorized.IsZero() {
		rows = append(rows, [2]any{"Uncategorized", s.Uncategorized.Float64()})
	}
	for i, r := range rows {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), r[0])
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), r[1])
	}
	f.SetColWidth(summarySheet, "A", "A", 18)

	return f, nil
}
