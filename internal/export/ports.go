package export

import (
	"context"

	"huishoudboek/internal/core"
)

// RowAppender delivers enriched expense rows to a spreadsheet destination.
// Implementations must be safe for concurrent use by the export worker.
type RowAppender interface {
	AppendRows(ctx context.Context, tenant core.Tenant, rows []core.ExportRow) error
}
