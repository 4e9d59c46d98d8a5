package core

// ExpenseLine is the part of an expense the aggregator reads.
// Category may hold a value outside the fixed set when it comes from a
// legacy row.
type ExpenseLine struct {
	Amount   Money
	Category Category
}

// CategoryAmount is one presentation row of the breakdown.
type CategoryAmount struct {
	Category Category
	Amount   Money
}

// CategoryTotals holds one subtotal per fixed category.
type CategoryTotals map[Category]Money

// Rows returns the subtotals in fixed category order, zeros included.
func (ct CategoryTotals) Rows() []CategoryAmount {
	rows := make([]CategoryAmount, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, CategoryAmount{Category: c, Amount: ct[c]})
	}
	return rows
}

// Sum adds every subtotal.
func (ct CategoryTotals) Sum() Money {
	total := Zero
	for _, c := range categories {
		total = total.Add(ct[c])
	}
	return total
}

// BudgetSnapshot is the derived view of a user's budget.
type BudgetSnapshot struct {
	Income         Money
	TotalExpenses  Money
	Savings        Money // may be negative
	CategoryTotals CategoryTotals
	// Uncategorized collects amounts whose category is outside the fixed set.
	// They count toward TotalExpenses only.
	Uncategorized Money
}

// ComputeSnapshot aggregates expenses against income in a single pass.
// It keeps no state between calls.
func ComputeSnapshot(income Money, expenses []ExpenseLine) BudgetSnapshot {
	totals := make(CategoryTotals, len(categories))
	for _, c := range categories {
		totals[c] = Zero
	}

	total := Zero
	uncategorized := Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
		if sub, ok := totals[e.Category]; ok {
			totals[e.Category] = sub.Add(e.Amount)
		} else {
			uncategorized = uncategorized.Add(e.Amount)
		}
	}

	return BudgetSnapshot{
		Income:         income,
		TotalExpenses:  total,
		Savings:        income.Sub(total),
		CategoryTotals: totals,
		Uncategorized:  uncategorized,
	}
}

// Lines projects stored expenses onto aggregator input.
func Lines(expenses []Expense) []ExpenseLine {
	lines := make([]ExpenseLine, len(expenses))
	for i, e := range expenses {
		lines[i] = ExpenseLine{Amount: e.Amount, Category: e.Category}
	}
	return lines
}

// SpendPercentage is TotalExpenses as a percentage of Income.
// ok is false for zero income so callers never render a non-finite value.
func SpendPercentage(s BudgetSnapshot) (float64, bool) {
	return Percent(s.TotalExpenses, s.Income)
}
