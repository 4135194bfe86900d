package worker

import (
	"context"
	"fmt"
	"log/slog"

	"huishoudboek/internal/amqp"
	"huishoudboek/internal/services"
)

// ExportWorker consumes export messages and hands them to the processor.
type ExportWorker struct {
	processor *services.ExportProcessor
}

func NewExportWorker(processor *services.ExportProcessor) *ExportWorker {
	return &ExportWorker{processor: processor}
}

// HandleExportMessage processes a single export message from AMQP.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.ExpenseExportMessage) error {
	slog.InfoContext(ctx, "Processing export message",
		"expense_id", msg.ExpenseID,
		"tenant_id", msg.TenantID)

	if err := w.processor.ProcessExpense(ctx, msg.TenantID, msg.ExpenseID); err != nil {
		return fmt.Errorf("process expense %s: %w", msg.ExpenseID, err)
	}
	return nil
}

// StartupExportCheck drains expenses left pending while the worker was
// down. AMQP messages for them may be lost; the queue table is the truth.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) {
	slog.InfoContext(ctx, "Running startup export catch-up")
	w.processor.ProcessBatch(ctx)
}
