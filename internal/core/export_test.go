package core

import "testing"

func TestEnrichForExportRunningRemaining(t *testing.T) {
	budgets := []BudgetLine{{Category: "A", Limit: Money{Cents: 2000}}}
	expenses := []Expense{
		exp("A", 1000, 1),
		exp("A", 500, 2),
	}

	rows := EnrichForExport(expenses, budgets)
	if rows[0].RemainingAfter.Cents != 1000 {
		t.Fatalf("first expense: expected remaining 1000, got %d", rows[0].RemainingAfter.Cents)
	}
	if rows[1].RemainingAfter.Cents != 500 {
		t.Fatalf("second expense: expected remaining 500, got %d", rows[1].RemainingAfter.Cents)
	}
}

func TestEnrichForExportPreservesInputOrder(t *testing.T) {
	budgets := []BudgetLine{{Category: "A", Limit: Money{Cents: 2000}}}
	// Display order: newest first. The running total must still apply
	// oldest first, but the output must match the input order.
	expenses := []Expense{
		exp("A", 500, 2),
		exp("A", 1000, 1),
	}

	rows := EnrichForExport(expenses, budgets)
	if rows[0].Date.Day() != 2 || rows[1].Date.Day() != 1 {
		t.Fatalf("output order changed: got days %d, %d", rows[0].Date.Day(), rows[1].Date.Day())
	}
	// Day 1 (1000) is applied first: remaining 1000. Day 2 then leaves 500.
	if rows[0].RemainingAfter.Cents != 500 {
		t.Fatalf("day 2 expense: expected remaining 500, got %d", rows[0].RemainingAfter.Cents)
	}
	if rows[1].RemainingAfter.Cents != 1000 {
		t.Fatalf("day 1 expense: expected remaining 1000, got %d", rows[1].RemainingAfter.Cents)
	}
}

func TestEnrichForExportPerCategoryRunningTotals(t *testing.T) {
	budgets := []BudgetLine{
		{Category: "A", Limit: Money{Cents: 1000}},
		{Category: "B", Limit: Money{Cents: 300}},
	}
	expenses := []Expense{
		exp("B", 200, 3),
		exp("a", 400, 2), // case variant of A
		exp("A", 100, 1),
	}

	rows := EnrichForExport(expenses, budgets)
	if rows[2].RemainingAfter.Cents != 900 { // A day 1: 1000-100
		t.Fatalf("A day 1: expected 900, got %d", rows[2].RemainingAfter.Cents)
	}
	if rows[1].RemainingAfter.Cents != 500 { // a day 2: 1000-100-400
		t.Fatalf("a day 2: expected 500, got %d", rows[1].RemainingAfter.Cents)
	}
	if rows[0].RemainingAfter.Cents != 100 { // B day 3: 300-200
		t.Fatalf("B day 3: expected 100, got %d", rows[0].RemainingAfter.Cents)
	}
}

func TestEnrichForExportOrphanCategory(t *testing.T) {
	rows := EnrichForExport([]Expense{exp("Onbekend", 250, 1)}, nil)
	// No budget line means limit 0: remaining goes negative, never panics.
	if rows[0].RemainingAfter.Cents != -250 {
		t.Fatalf("expected -250, got %d", rows[0].RemainingAfter.Cents)
	}
}
