package core

import "testing"

func exp(cat string, cents int64, day int) Expense {
	return Expense{
		Date:        NewDate(2025, 6, day),
		Description: "x",
		Category:    cat,
		Amount:      Money{Cents: cents},
	}
}

func TestSummarizeBudgetsPerCategory(t *testing.T) {
	budgets := []BudgetLine{
		{Category: "Boodschappen", Limit: Money{Cents: 20000}},
		{Category: "Vervoer", Limit: Money{Cents: 5000}},
	}
	expenses := []Expense{
		exp("Boodschappen", 4500, 1),
		exp(" boodschappen ", 500, 2), // whitespace variant aggregates together
		exp("BOODSCHAPPEN", 1000, 3),  // case variant too
		exp("Vervoer", 6000, 4),
	}

	s := SummarizeBudgets(expenses, budgets, Money{})

	if len(s.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(s.Categories))
	}
	b := s.Categories[0]
	if b.Spent.Cents != 6000 {
		t.Fatalf("expected Boodschappen spent 6000, got %d", b.Spent.Cents)
	}
	if b.Remaining.Cents != 14000 {
		t.Fatalf("expected remaining 14000, got %d", b.Remaining.Cents)
	}
	if b.Percentage != 30 {
		t.Fatalf("expected 30%%, got %v", b.Percentage)
	}
	if b.OverBudget {
		t.Fatalf("Boodschappen should not be over budget")
	}

	v := s.Categories[1]
	if v.Remaining.Cents != -1000 || !v.OverBudget {
		t.Fatalf("expected Vervoer over budget by 1000, got %+v", v)
	}
}

func TestSummarizeBudgetsZeroLimit(t *testing.T) {
	budgets := []BudgetLine{{Category: "Overig", Limit: Money{Cents: 0}}}
	s := SummarizeBudgets([]Expense{exp("Overig", 2500, 1)}, budgets, Money{})

	st := s.Categories[0]
	if st.Percentage != 0 {
		t.Fatalf("zero limit must yield percentage 0, got %v", st.Percentage)
	}
	if st.Remaining.Cents != -2500 || !st.OverBudget {
		t.Fatalf("expected over budget with remaining -2500, got %+v", st)
	}
}

func TestSummarizeBudgetsOrphanCategory(t *testing.T) {
	budgets := []BudgetLine{{Category: "Boodschappen", Limit: Money{Cents: 10000}}}
	expenses := []Expense{
		exp("Boodschappen", 3000, 1),
		exp("Onbekend", 2000, 2), // no budget line
	}

	s := SummarizeBudgets(expenses, budgets, Money{})

	// Orphans are excluded from tiles but included in the total.
	if len(s.Categories) != 1 {
		t.Fatalf("expected 1 tile, got %d", len(s.Categories))
	}
	if s.TotalSpent.Cents != 5000 {
		t.Fatalf("expected total spent 5000, got %d", s.TotalSpent.Cents)
	}

	var perCategory int64
	for _, c := range s.Categories {
		perCategory += c.Spent.Cents
	}
	if perCategory != 3000 {
		t.Fatalf("expected per-category sum 3000, got %d", perCategory)
	}
}

func TestSummarizeBudgetsSpentSumMatchesTotal(t *testing.T) {
	budgets := []BudgetLine{
		{Category: "A", Limit: Money{Cents: 100}},
		{Category: "B", Limit: Money{Cents: 100}},
	}
	expenses := []Expense{exp("A", 10, 1), exp("B", 20, 1), exp("a", 30, 2)}

	s := SummarizeBudgets(expenses, budgets, Money{})

	var perCategory int64
	for _, c := range s.Categories {
		perCategory += c.Spent.Cents
	}
	if perCategory != s.TotalSpent.Cents {
		t.Fatalf("per-category sum %d != total %d", perCategory, s.TotalSpent.Cents)
	}
}

func TestEffectiveTotalLimit(t *testing.T) {
	budgets := []BudgetLine{
		{Category: "A", Limit: Money{Cents: 10000}},
		{Category: "B", Limit: Money{Cents: 5000}},
	}
	if got := EffectiveTotalLimit(budgets, Money{}); got.Cents != 15000 {
		t.Fatalf("income 0: expected sum of limits 15000, got %d", got.Cents)
	}
	if got := EffectiveTotalLimit(budgets, Money{Cents: 20000}); got.Cents != 20000 {
		t.Fatalf("income set: expected 20000, got %d", got.Cents)
	}
}

func TestSummarizeBudgetsTotalRemaining(t *testing.T) {
	budgets := []BudgetLine{{Category: "A", Limit: Money{Cents: 10000}}}
	expenses := []Expense{exp("A", 4000, 1), exp("Orphan", 1000, 2)}

	s := SummarizeBudgets(expenses, budgets, Money{Cents: 20000})
	if s.TotalRemaining.Cents != 15000 {
		t.Fatalf("expected total remaining 15000, got %d", s.TotalRemaining.Cents)
	}
	if s.OverBudget {
		t.Fatalf("should not be over budget")
	}

	s = SummarizeBudgets(expenses, budgets, Money{Cents: 4000})
	if s.TotalRemaining.Cents != -1000 || !s.OverBudget {
		t.Fatalf("expected over budget by 1000, got %+v", s)
	}
}

func TestSummarizeBudgetsEmpty(t *testing.T) {
	s := SummarizeBudgets(nil, nil, Money{})
	if s.TotalSpent.Cents != 0 || s.TotalLimit.Cents != 0 || len(s.Categories) != 0 {
		t.Fatalf("expected empty summary, got %+v", s)
	}
}
