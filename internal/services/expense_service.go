package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"huishoudboek/internal/core"
	"huishoudboek/internal/storage"
)

// ErrDuplicateExpense signals a probable duplicate receipt. The check is
// advisory: callers can retry with allowDuplicate to save anyway, and two
// concurrent sessions can still both succeed.
var ErrDuplicateExpense = errors.New("probable duplicate expense")

// ExportPublisher notifies the worker that an expense awaits export.
type ExportPublisher interface {
	PublishExpenseExport(ctx context.Context, expenseID, tenantID string) error
}

// ExpenseService orchestrates expense writes across storage and the
// export queue.
type ExpenseService struct {
	repo      *storage.Repository
	publisher ExportPublisher
}

func NewExpenseService(repo *storage.Repository, publisher ExportPublisher) *ExpenseService {
	return &ExpenseService{repo: repo, publisher: publisher}
}

// CreateExpense saves an expense and publishes an export message. Before
// saving it compares the expense against the same month's records; a match
// on amount, date and normalized description returns ErrDuplicateExpense
// unless allowDuplicate is set.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense, allowDuplicate bool) (core.Expense, error) {
	if !allowDuplicate {
		existing, err := s.repo.ListExpenses(ctx, e.TenantID, e.Date.Year(), e.Date.Month())
		if err != nil {
			return core.Expense{}, fmt.Errorf("load month for duplicate check: %w", err)
		}
		if dup, found := core.FindDuplicate(e, existing); found {
			slog.InfoContext(ctx, "Duplicate expense rejected",
				"tenant_id", e.TenantID,
				"existing_id", dup.ID,
				"description", e.Description)
			return core.Expense{}, ErrDuplicateExpense
		}
	}

	saved, err := s.repo.InsertExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	// The expense is saved; export failures only delay the spreadsheet,
	// the pending row guarantees a later catch-up pass picks it up.
	if s.publisher != nil {
		if err := s.publisher.PublishExpenseExport(ctx, saved.ID, saved.TenantID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish export message",
				"expense_id", saved.ID, "error", err)
		}
	} else {
		slog.WarnContext(ctx, "Export publisher not available, expense stays queued", "expense_id", saved.ID)
	}

	return saved, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, tenantID, id string) (core.Expense, error) {
	return s.repo.GetExpense(ctx, tenantID, id)
}

func (s *ExpenseService) ListExpenses(ctx context.Context, tenantID string, year, month int) ([]core.Expense, error) {
	return s.repo.ListExpenses(ctx, tenantID, year, month)
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, tenantID, id string) error {
	if err := s.repo.DeleteExpense(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}
