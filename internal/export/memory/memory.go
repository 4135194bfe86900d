// Package memory is an in-process export backend used in tests and local
// development.
package memory

import (
	"context"
	"sync"

	"huishoudboek/internal/core"
	ports "huishoudboek/internal/export"
)

type Store struct {
	mu   sync.Mutex
	rows map[string][]core.ExportRow
}

var _ ports.RowAppender = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[string][]core.ExportRow)}
}

func (s *Store) AppendRows(_ context.Context, tenant core.Tenant, rows []core.ExportRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[tenant.ID] = append(s.rows[tenant.ID], rows...)
	return nil
}

// Rows returns a copy of everything appended for a tenant.
func (s *Store) Rows(tenantID string) []core.ExportRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExportRow(nil), s.rows[tenantID]...)
}
