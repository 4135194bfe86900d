package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"huishoudboek/internal/core"
)

func sampleRows() []core.ExportRow {
	e := core.Expense{
		ID:          "exp-1",
		TenantID:    "tenant-1",
		UserID:      "user-1",
		Date:        core.NewDate(2025, 6, 15),
		Description: "Albert Heijn",
		Category:    "Boodschappen",
		Amount:      core.Money{Cents: 1250},
	}
	return []core.ExportRow{{Expense: e, RemainingAfter: core.Money{Cents: 38750}, UserName: "Anna"}}
}

func TestAppendRows(t *testing.T) {
	var got exportPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tenant := core.Tenant{ID: "tenant-1", Name: "Huis A", SheetURL: server.URL}
	if err := New().AppendRows(context.Background(), tenant, sampleRows()); err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}

	if got.TenantID != "tenant-1" {
		t.Errorf("expected tenant id in payload, got %q", got.TenantID)
	}
	if len(got.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got.Rows))
	}
	row := got.Rows[0]
	if row.Amount != 12.50 || row.Remaining != 387.50 {
		t.Errorf("unexpected amounts: %+v", row)
	}
	if row.Date != "2025-06-15" || row.UserName != "Anna" {
		t.Errorf("unexpected row fields: %+v", row)
	}
}

func TestAppendRowsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	tenant := core.Tenant{ID: "tenant-1", SheetURL: server.URL}
	if err := New().AppendRows(context.Background(), tenant, sampleRows()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestAppendRowsMissingURL(t *testing.T) {
	if err := New().AppendRows(context.Background(), core.Tenant{ID: "t"}, sampleRows()); err == nil {
		t.Fatal("expected error for missing sheet url")
	}
}

func TestAppendRowsEmptyBatch(t *testing.T) {
	if err := New().AppendRows(context.Background(), core.Tenant{ID: "t"}, nil); err != nil {
		t.Fatalf("expected nil for empty batch, got %v", err)
	}
}
