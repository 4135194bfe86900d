package core

// BudgetStatus is the computed state of one category for a month.
type BudgetStatus struct {
	Category   string
	Limit      Money
	Spent      Money
	Remaining  Money
	Percentage float64
	OverBudget bool
}

// BudgetSummary is the computed state of a whole month.
type BudgetSummary struct {
	Categories     []BudgetStatus
	TotalLimit     Money // effective total: income when set, else sum of limits
	TotalSpent     Money // includes expenses whose category has no budget line
	TotalRemaining Money
	OverBudget     bool
}

// EffectiveTotalLimit returns the denominator for the top-level remaining
// figure: the monthly income when set, otherwise the sum of category limits.
func EffectiveTotalLimit(budgets []BudgetLine, income Money) Money {
	if income.Cents > 0 {
		return income
	}
	var sum int64
	for _, b := range budgets {
		sum += b.Limit.Cents
	}
	return Money{Cents: sum}
}

// SummarizeBudgets computes per-category and total budget state for a set of
// expenses. The function is month-agnostic: callers pass the expenses of the
// period under consideration. Category matching uses key equality, so
// "Boodschappen", " boodschappen " and "BOODSCHAPPEN" aggregate together.
// Expenses whose category has no budget line count toward the total but get
// no per-category status.
func SummarizeBudgets(expenses []Expense, budgets []BudgetLine, income Money) BudgetSummary {
	spentByKey := make(map[CategoryKey]int64, len(budgets))
	var totalSpent int64
	for _, e := range expenses {
		totalSpent += e.Amount.Cents
		spentByKey[Key(e.Category)] += e.Amount.Cents
	}

	summary := BudgetSummary{
		Categories: make([]BudgetStatus, 0, len(budgets)),
		TotalLimit: EffectiveTotalLimit(budgets, income),
		TotalSpent: Money{Cents: totalSpent},
	}

	for _, b := range budgets {
		spent := spentByKey[Key(b.Category)]
		remaining := b.Limit.Cents - spent
		st := BudgetStatus{
			Category:   b.Category,
			Limit:      b.Limit,
			Spent:      Money{Cents: spent},
			Remaining:  Money{Cents: remaining},
			OverBudget: remaining < 0,
		}
		// A zero limit yields percentage 0 by policy, never a division by zero.
		if b.Limit.Cents > 0 {
			st.Percentage = float64(spent) / float64(b.Limit.Cents) * 100
		}
		summary.Categories = append(summary.Categories, st)
	}

	summary.TotalRemaining = Money{Cents: summary.TotalLimit.Cents - totalSpent}
	summary.OverBudget = summary.TotalRemaining.Cents < 0
	return summary
}
