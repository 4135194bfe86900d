// Package backend selects the spreadsheet export destination.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"huishoudboek/internal/config"
	"huishoudboek/internal/export"
	"huishoudboek/internal/export/google"
	"huishoudboek/internal/export/memory"
	"huishoudboek/internal/export/webhook"
)

type Type string

const (
	WebhookBackend Type = "webhook"
	SheetsBackend  Type = "sheets"
	MemoryBackend  Type = "memory"
)

func (t Type) IsValid() bool {
	switch t {
	case WebhookBackend, SheetsBackend, MemoryBackend:
		return true
	}
	return false
}

// New creates the export backend named by the configuration.
func New(ctx context.Context, cfg *config.Config) (export.RowAppender, error) {
	t := Type(cfg.ExportBackend)
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid export backend: %s", cfg.ExportBackend)
	}

	switch t {
	case WebhookBackend:
		slog.InfoContext(ctx, "Using webhook export backend")
		return webhook.New(), nil
	case SheetsBackend:
		client, err := google.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create sheets backend: %w", err)
		}
		slog.InfoContext(ctx, "Using Google Sheets export backend", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		return client, nil
	case MemoryBackend:
		slog.InfoContext(ctx, "Using in-memory export backend")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unhandled export backend: %s", t)
}
