package core

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func totalsOf(pairs map[Category]int64) CategoryTotals {
	ct := CategoryTotals{}
	for _, c := range Categories() {
		ct[c] = MoneyFromInt(pairs[c])
	}
	return ct
}

func TestComputeSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		income   Money
		expenses []ExpenseLine
		want     BudgetSnapshot
	}{
		{
			name:   "mixed categories",
			income: MoneyFromInt(5000),
			expenses: []ExpenseLine{
				{MoneyFromInt(1200), CategoryHousing},
				{MoneyFromInt(300), CategoryFood},
				{MoneyFromInt(50), CategoryOther},
			},
			want: BudgetSnapshot{
				Income:        MoneyFromInt(5000),
				TotalExpenses: MoneyFromInt(1550),
				Savings:       MoneyFromInt(3450),
				CategoryTotals: totalsOf(map[Category]int64{
					CategoryHousing: 1200, CategoryFood: 300, CategoryOther: 50,
				}),
			},
		},
		{
			name:   "zero income and no expenses",
			income: Zero,
			want: BudgetSnapshot{
				CategoryTotals: totalsOf(nil),
			},
		},
		{
			name:     "capitalized category is not housing",
			income:   MoneyFromInt(100),
			expenses: []ExpenseLine{{MoneyFromInt(100), "Housing"}},
			want: BudgetSnapshot{
				Income:         MoneyFromInt(100),
				TotalExpenses:  MoneyFromInt(100),
				Savings:        Zero,
				CategoryTotals: totalsOf(nil),
				Uncategorized:  MoneyFromInt(100),
			},
		},
		{
			name:     "overspending yields negative savings",
			income:   MoneyFromInt(100),
			expenses: []ExpenseLine{{MoneyFromInt(250), CategoryEntertainment}},
			want: BudgetSnapshot{
				Income:         MoneyFromInt(100),
				TotalExpenses:  MoneyFromInt(250),
				Savings:        MoneyFromInt(-150),
				CategoryTotals: totalsOf(map[Category]int64{CategoryEntertainment: 250}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSnapshot(tt.income, tt.expenses)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ComputeSnapshot mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSnapshotRowsOrder(t *testing.T) {
	s := ComputeSnapshot(Zero, []ExpenseLine{{MoneyFromInt(3), CategoryOther}, {MoneyFromInt(2), CategoryHousing}})
	rows := s.CategoryTotals.Rows()
	want := []CategoryAmount{
		{CategoryHousing, MoneyFromInt(2)},
		{CategoryFood, Zero},
		{CategoryTransportation, Zero},
		{CategoryUtilities, Zero},
		{CategoryEntertainment, Zero},
		{CategoryOther, MoneyFromInt(3)},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("Rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSpendPercentage(t *testing.T) {
	if _, ok := SpendPercentage(ComputeSnapshot(Zero, nil)); ok {
		t.Fatalf("zero income must not produce a percentage")
	}
	if _, ok := SpendPercentage(ComputeSnapshot(Zero, []ExpenseLine{{MoneyFromInt(5), CategoryFood}})); ok {
		t.Fatalf("zero income with expenses must not produce a percentage")
	}
	p, ok := SpendPercentage(ComputeSnapshot(MoneyFromInt(200), []ExpenseLine{{MoneyFromInt(50), CategoryFood}}))
	if !ok || p != 25 {
		t.Fatalf("SpendPercentage = %v, %v; want 25, true", p, ok)
	}
}

var pool = []Category{
	CategoryHousing, CategoryFood, CategoryTransportation, CategoryUtilities,
	CategoryEntertainment, CategoryOther, "Housing", "groceries", "",
}

func randomLines(r *rand.Rand, n int) []ExpenseLine {
	lines := make([]ExpenseLine, n)
	for i := range lines {
		cents := r.Int63n(1_000_000) + 1
		lines[i] = ExpenseLine{Amount: NewMoney(decimal.New(cents, -2)), Category: pool[r.Intn(len(pool))]}
	}
	return lines
}

func TestSnapshotProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		income := MoneyFromInt(r.Int63n(100_000))
		lines := randomLines(r, r.Intn(40))

		s := ComputeSnapshot(income, lines)

		sum := Zero
		allKnown := true
		for _, l := range lines {
			sum = sum.Add(l.Amount)
			if !l.Category.Valid() {
				allKnown = false
			}
		}
		if !s.Savings.Equal(income.Sub(sum)) {
			t.Fatalf("savings %s != income %s - sum %s", s.Savings, income, sum)
		}
		sub := s.CategoryTotals.Sum()
		if sub.Cmp(s.TotalExpenses) > 0 {
			t.Fatalf("subtotals %s exceed total %s", sub, s.TotalExpenses)
		}
		if allKnown != sub.Equal(s.TotalExpenses) {
			t.Fatalf("subtotal equality %v but all-known %v", sub.Equal(s.TotalExpenses), allKnown)
		}
		if !sub.Add(s.Uncategorized).Equal(s.TotalExpenses) {
			t.Fatalf("subtotals + uncategorized != total")
		}

		again := ComputeSnapshot(income, lines)
		if diff := cmp.Diff(s, again); diff != "" {
			t.Fatalf("recompute differs:\n%s", diff)
		}
	}
}

func TestSnapshotAfterDelete(t *testing.T) {
	lines := []ExpenseLine{
		{MoneyFromInt(1200), CategoryHousing},
		{MoneyFromInt(300), CategoryFood},
		{MoneyFromInt(50), CategoryOther},
	}
	before := ComputeSnapshot(MoneyFromInt(5000), lines)
	after := ComputeSnapshot(MoneyFromInt(5000), append(lines[:1:1], lines[2:]...))

	if !before.TotalExpenses.Sub(after.TotalExpenses).Equal(MoneyFromInt(300)) {
		t.Fatalf("total did not drop by the deleted amount")
	}
	if !after.CategoryTotals[CategoryFood].IsZero() {
		t.Fatalf("food subtotal = %s, want 0", after.CategoryTotals[CategoryFood])
	}
	if !after.Savings.Equal(MoneyFromInt(3750)) {
		t.Fatalf("savings = %s, want 3750", after.Savings)
	}
}
