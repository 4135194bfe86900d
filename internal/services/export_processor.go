package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"huishoudboek/internal/core"
	"huishoudboek/internal/export"
	"huishoudboek/internal/storage"
)

// ExportProcessorConfig holds the poll loop settings.
type ExportProcessorConfig struct {
	// PollInterval is how often to check for pending expenses.
	PollInterval time.Duration

	// BatchSize is the max number of expenses per poll cycle.
	BatchSize int

	// MaxRetries is the number of attempts before an expense is parked
	// with export status error.
	MaxRetries int
}

func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
		MaxRetries:   3,
	}
}

// ExportProcessor drains the pending export queue and appends enriched
// rows to each tenant's spreadsheet. It runs both from AMQP messages and
// from a periodic catch-up poll, so expenses survive broker outages.
type ExportProcessor struct {
	repo     *storage.Repository
	appender export.RowAppender
	config   ExportProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportProcessor(repo *storage.Repository, appender export.RowAppender, config ExportProcessorConfig) *ExportProcessor {
	return &ExportProcessor{
		repo:     repo,
		appender: appender,
		config:   config,
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Export processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on startup to catch up after downtime.
	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch exports one batch of pending expenses. Safe to call
// directly; the worker uses it for the startup catch-up pass.
func (p *ExportProcessor) ProcessBatch(ctx context.Context) {
	pending, err := p.repo.PendingExportExpenses(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load pending export expenses", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	slog.DebugContext(ctx, "Processing export batch", "count", len(pending))

	for _, item := range pending {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := p.exportExpense(ctx, item.Expense); err != nil {
			p.handleFailure(ctx, item, err)
		}
	}
}

// ProcessExpense exports a single expense by id, used by the AMQP worker.
// An expense already exported is a no-op, not an error, so redelivered
// messages stay idempotent.
func (p *ExportProcessor) ProcessExpense(ctx context.Context, tenantID, expenseID string) error {
	status, err := p.repo.ExportStatus(ctx, tenantID, expenseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.WarnContext(ctx, "Expense for export no longer exists", "expense_id", expenseID)
			return nil
		}
		return fmt.Errorf("get export status %s: %w", expenseID, err)
	}
	if status == storage.ExportDone {
		slog.DebugContext(ctx, "Expense already exported, skipping", "expense_id", expenseID)
		return nil
	}

	expense, err := p.repo.GetExpense(ctx, tenantID, expenseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.WarnContext(ctx, "Expense for export no longer exists", "expense_id", expenseID)
			return nil
		}
		return fmt.Errorf("get expense %s: %w", expenseID, err)
	}
	return p.exportExpense(ctx, expense)
}

// exportExpense enriches the expense with its running remaining budget and
// appends it to the tenant's spreadsheet.
func (p *ExportProcessor) exportExpense(ctx context.Context, expense core.Expense) error {
	tenant, err := p.repo.GetTenant(ctx, expense.TenantID)
	if err != nil {
		return fmt.Errorf("get tenant %s: %w", expense.TenantID, err)
	}

	row, err := p.enrichedRow(ctx, tenant, expense)
	if err != nil {
		return err
	}

	if err := p.appender.AppendRows(ctx, tenant, []core.ExportRow{row}); err != nil {
		return fmt.Errorf("append row: %w", err)
	}

	if err := p.repo.MarkExported(ctx, expense.ID); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// enrichedRow recomputes the month's running budget so the exported row
// carries the remaining amount as of this expense in chronological order.
func (p *ExportProcessor) enrichedRow(ctx context.Context, tenant core.Tenant, expense core.Expense) (core.ExportRow, error) {
	monthExpenses, err := p.repo.ListExpenses(ctx, tenant.ID, expense.Date.Year(), expense.Date.Month())
	if err != nil {
		return core.ExportRow{}, fmt.Errorf("list month expenses: %w", err)
	}
	budgets, err := p.repo.GetBudgets(ctx, tenant.ID)
	if err != nil {
		return core.ExportRow{}, fmt.Errorf("get budgets: %w", err)
	}

	rows := core.EnrichForExport(monthExpenses, budgets)
	names := p.memberNames(ctx, tenant.ID)

	for _, row := range rows {
		if row.ID == expense.ID {
			row.UserName = names[row.UserID]
			return row, nil
		}
	}
	// The expense was not in the listed month, which only happens if it
	// was deleted between the queue read and now. Export it unenriched.
	return core.ExportRow{Expense: expense, UserName: names[expense.UserID]}, nil
}

func (p *ExportProcessor) memberNames(ctx context.Context, tenantID string) map[string]string {
	members, err := p.repo.ListMembers(ctx, tenantID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load member names for export", "tenant_id", tenantID, "error", err)
		return nil
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.UserID] = m.FullName
	}
	return names
}

func (p *ExportProcessor) handleFailure(ctx context.Context, item storage.PendingExport, cause error) {
	attempts := item.Attempts + 1
	if attempts >= int64(p.config.MaxRetries) {
		if err := p.repo.MarkExportFailed(ctx, item.Expense.ID, cause.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to mark export as failed", "expense_id", item.Expense.ID, "error", err)
		}
		return
	}
	if err := p.repo.IncrementExportAttempt(ctx, item.Expense.ID, cause.Error()); err != nil {
		slog.ErrorContext(ctx, "Failed to record export attempt", "expense_id", item.Expense.ID, "error", err)
		return
	}
	slog.WarnContext(ctx, "Expense export failed, will retry",
		"expense_id", item.Expense.ID,
		"attempt", attempts,
		"max_retries", p.config.MaxRetries,
		"error", cause)
}
