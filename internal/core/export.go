package core

import "sort"

// ExportRow is an expense annotated for spreadsheet export.
type ExportRow struct {
	Expense
	// RemainingAfter is the category budget left after this expense, with
	// all same-category expenses applied in chronological order.
	RemainingAfter Money
	UserName       string
}

// EnrichForExport annotates each expense with the running remaining budget
// of its category. The running total is computed as if expenses were applied
// oldest first (ties broken by creation time, then input position), but the
// returned rows keep the caller's original order, which is typically the
// reverse-chronological display order.
func EnrichForExport(expenses []Expense, budgets []BudgetLine) []ExportRow {
	limits := make(map[CategoryKey]int64, len(budgets))
	for _, b := range budgets {
		limits[Key(b.Category)] = b.Limit.Cents
	}

	order := make([]int, len(expenses))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := expenses[order[a]], expenses[order[b]]
		if !ea.Date.Equal(eb.Date.Time) {
			return ea.Date.Before(eb.Date.Time)
		}
		return ea.CreatedAt.Before(eb.CreatedAt)
	})

	rows := make([]ExportRow, len(expenses))
	spent := make(map[CategoryKey]int64)
	for _, idx := range order {
		e := expenses[idx]
		k := Key(e.Category)
		spent[k] += e.Amount.Cents
		rows[idx] = ExportRow{
			Expense:        e,
			RemainingAfter: Money{Cents: limits[k] - spent[k]},
		}
	}
	return rows
}
