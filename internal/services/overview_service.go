package services

import (
	"context"
	"errors"
	"fmt"

	"huishoudboek/internal/core"
	"huishoudboek/internal/storage"

	"golang.org/x/sync/errgroup"
)

var ErrInvalidMonth = errors.New("month must be between 1 and 12")

// Overview is the monthly dashboard: the expense list plus budget totals.
type Overview struct {
	Year     int
	Month    int
	Income   core.Money
	Expenses []core.Expense
	Summary  core.BudgetSummary
}

type OverviewService struct {
	repo *storage.Repository
}

func NewOverviewService(repo *storage.Repository) *OverviewService {
	return &OverviewService{repo: repo}
}

// GetOverview loads expenses, budgets and income concurrently and derives
// the budget summary for the month.
func (s *OverviewService) GetOverview(ctx context.Context, tenantID string, year, month int) (Overview, error) {
	if month < 1 || month > 12 {
		return Overview{}, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}

	var (
		expenses []core.Expense
		budgets  []core.BudgetLine
		income   core.Money
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.repo.ListExpenses(gctx, tenantID, year, month)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		budgets, err = s.repo.GetBudgets(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("get budgets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		income, err = s.repo.GetIncome(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("get income: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	return Overview{
		Year:     year,
		Month:    month,
		Income:   income,
		Expenses: expenses,
		Summary:  core.SummarizeBudgets(expenses, budgets, income),
	}, nil
}
