package services

import (
	"context"
	"testing"

	"huishoudboek/internal/core"
)

func TestSettingsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	tenant := newTestTenant(t, repo)
	svc := NewSettingsService(repo)
	ctx := context.Background()

	in := TenantSettings{
		Income:   core.Money{Cents: 250000},
		SheetURL: "https://example.com/sheet",
		Budgets: []core.BudgetLine{
			{Category: "Boodschappen", Limit: core.Money{Cents: 50000}},
			{Category: "Overig", Limit: core.Money{Cents: 10000}},
		},
	}
	if err := svc.SaveSettings(ctx, tenant.ID, in); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	got, err := svc.GetSettings(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if got.Income.Cents != 250000 || got.SheetURL != in.SheetURL {
		t.Errorf("unexpected settings: %+v", got)
	}
	if len(got.Budgets) != 2 {
		t.Fatalf("expected 2 budgets, got %d", len(got.Budgets))
	}
}

func TestSaveSettingsRejectsDuplicateCategories(t *testing.T) {
	repo := newTestRepo(t)
	tenant := newTestTenant(t, repo)
	svc := NewSettingsService(repo)

	in := TenantSettings{
		Budgets: []core.BudgetLine{
			{Category: "Boodschappen", Limit: core.Money{Cents: 100}},
			{Category: " BOODSCHAPPEN ", Limit: core.Money{Cents: 200}},
		},
	}
	if err := svc.SaveSettings(context.Background(), tenant.ID, in); err == nil {
		t.Fatal("expected error for categories differing only in case")
	}
}

func TestCategories(t *testing.T) {
	repo := newTestRepo(t)
	tenant := newTestTenant(t, repo)
	svc := NewSettingsService(repo)
	ctx := context.Background()

	in := TenantSettings{
		Budgets: []core.BudgetLine{
			{Category: "Boodschappen", Limit: core.Money{Cents: 100}},
			{Category: "Vervoer", Limit: core.Money{Cents: 200}},
		},
	}
	if err := svc.SaveSettings(ctx, tenant.ID, in); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	names, err := svc.Categories(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if len(names) != 2 || names[0] != "Boodschappen" || names[1] != "Vervoer" {
		t.Errorf("unexpected categories: %v", names)
	}
}
