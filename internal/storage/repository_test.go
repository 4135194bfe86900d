package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"huishoudboek/internal/core"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedTenant(t *testing.T, repo *Repository, name string) core.Tenant {
	t.Helper()
	tenant, err := repo.CreateTenant(context.Background(), core.Tenant{Name: name})
	if err != nil {
		t.Fatalf("CreateTenant failed: %v", err)
	}
	return tenant
}

func testExpense(tenantID string, day int, desc string, cents int64) core.Expense {
	return core.Expense{
		TenantID:    tenantID,
		UserID:      "user-1",
		Date:        core.NewDate(2025, 6, day),
		Description: desc,
		Category:    "Boodschappen",
		Amount:      core.Money{Cents: cents},
	}
}

func TestExpenseRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	tenant := seedTenant(t, repo, "Huis A")

	saved, err := repo.InsertExpense(ctx, testExpense(tenant.ID, 15, "Albert Heijn", 4250))
	if err != nil {
		t.Fatalf("InsertExpense failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := repo.GetExpense(ctx, tenant.ID, saved.ID)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if got.Amount.Cents != 4250 {
		t.Errorf("expected 4250 cents, got %d", got.Amount.Cents)
	}
	if got.Date.ISO() != "2025-06-15" {
		t.Errorf("expected date 2025-06-15, got %s", got.Date.ISO())
	}
	if got.Description != "Albert Heijn" {
		t.Errorf("expected description preserved, got %q", got.Description)
	}
}

func TestGetExpenseWrongTenant(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	tenant := seedTenant(t, repo, "Huis A")
	other := seedTenant(t, repo, "Huis B")

	saved, err := repo.InsertExpense(ctx, testExpense(tenant.ID, 1, "Jumbo", 1000))
	if err != nil {
		t.Fatalf("InsertExpense failed: %v", err)
	}

	if _, err := repo.GetExpense(ctx, other.ID, saved.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for other tenant, got %v", err)
	}
}

func TestListExpensesMonthWindow(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	tenant := seedTenant(t, repo, "Huis A")

	inMonth := []core.Expense{
		testExpense(tenant.ID, 1, "eerste", 100),
		testExpense(tenant.ID, 30, "laatste", 200),
	}
	outOfMonth := []core.Expense{
		{TenantID: tenant.ID, UserID: "user-1", Date: core.NewDate(2025, 5, 31), Description: "mei", Category: "Overig", Amount: core.Money{Cents: 300}},
		{TenantID: tenant.ID, UserID: "user-1", Date: core.NewDate(2025, 7, 1), Description: "juli", Category: "Overig", Amount: core.Money{Cents: 400}},
	}
	for _, e := range append(inMonth, outOfMonth...) {
		if _, err := repo.InsertExpense(ctx, e); err != nil {
			t.Fatalf("InsertExpense failed: %v", err)
		}
	}

	got, err := repo.ListExpenses(ctx, tenant.ID, 2025, 6)
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 expenses in June, got %d", len(got))
	}
	if got[0].Description != "laatste" {
		t.Errorf("expected newest first, got %q", got[0].Description)
	}
}

func TestDeleteExpense(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	tenant := seedTenant(t, repo, "Huis A")

	saved, err := repo.InsertExpense(ctx, testExpense(tenant.ID, 10, "Lidl", 999))
	if err != nil {
		t.Fatalf("InsertExpense failed: %v", err)
	}

	if err := repo.DeleteExpense(ctx, tenant.ID, saved.ID); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	if _, err := repo.GetExpense(ctx, tenant.ID, saved.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Re-deleting is a no-op, not an error.
	if err := repo.DeleteExpense(ctx, tenant.ID, saved.ID); err != nil {
		t.Errorf("expected idempotent delete, got %v", err)
	}
}

func TestIncomeMissingRowIsZero(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	tenant := seedTenant(t, repo, "Huis A")

	income, err := repo.GetIncome(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("GetIncome failed: %v", err)
	}
	if income.Cents != 0 {
		t.Errorf("expected zero income for fresh tenant, got %d", income.Cents)
	}
}

func TestUpsertIncome(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	tenant := seedTenant(t, repo, "Huis A")

	if err := repo.UpsertIncome(ctx, tenant.ID, core.Money{Cents: 250000}); err != nil {
		t.Fatalf("UpsertIncome failed: %v", err)
	}
	if err := repo.UpsertIncome(ctx, tenant.ID, core.Money{Cents: 300000}); err != nil {
		t.Fatalf("second UpsertIncome failed: %v", err)
	}

	income, err := repo.GetIncome(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("GetIncome failed: %v", err)
	}
	if income.Cents != 300000 {
		t.Errorf("expected 300000 after update, got %d", income.Cents)
	}
}

func TestReplaceBudgets(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	tenant := seedTenant(t, repo, "Huis A")

	first := []core.BudgetLine{
		{Category: "Boodschappen", Limit: core.Money{Cents: 50000}},
		{Category: "Vervoer", Limit: core.Money{Cents: 20000}},
	}
	if err := repo.ReplaceBudgets(ctx, tenant.ID, first); err != nil {
		t.Fatalf("ReplaceBudgets failed: %v", err)
	}

	second := []core.BudgetLine{{Category: "Huur", Limit: core.Money{Cents: 120000}}}
	if err := repo.ReplaceBudgets(ctx, tenant.ID, second); err != nil {
		t.Fatalf("second ReplaceBudgets failed: %v", err)
	}

	got, err := repo.GetBudgets(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("GetBudgets failed: %v", err)
	}
	if len(got) != 1 || got[0].Category != "Huur" {
		t.Fatalf("expected only Huur to survive replace, got %+v", got)
	}
}

func TestReplaceSettingsAtomic(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	tenant := seedTenant(t, repo, "Huis A")

	initial := Settings{
		Income:   core.Money{Cents: 200000},
		SheetURL: "https://example.com/sheet-old",
		Budgets:  []core.BudgetLine{{Category: "Boodschappen", Limit: core.Money{Cents: 40000}}},
	}
	if err := repo.ReplaceSettings(ctx, tenant.ID, initial); err != nil {
		t.Fatalf("ReplaceSettings failed: %v", err)
	}

	// A budget with an empty category fails validation after the income
	// upsert already ran inside the transaction; the whole save must roll
	// back to the previous state.
	bad := Settings{
		Income:   core.Money{Cents: 999999},
		SheetURL: "https://example.com/sheet-new",
		Budgets:  []core.BudgetLine{{Category: "", Limit: core.Money{Cents: 100}}},
	}
	if err := repo.ReplaceSettings(ctx, tenant.ID, bad); err == nil {
		t.Fatal("expected failing save to return an error")
	}

	income, err := repo.GetIncome(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("GetIncome failed: %v", err)
	}
	if income.Cents != 200000 {
		t.Errorf("expected income unchanged after rollback, got %d", income.Cents)
	}

	got, err := repo.GetTenant(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("GetTenant failed: %v", err)
	}
	if got.SheetURL != "https://example.com/sheet-old" {
		t.Errorf("expected sheet url unchanged after rollback, got %q", got.SheetURL)
	}

	budgets, err := repo.GetBudgets(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("GetBudgets failed: %v", err)
	}
	if len(budgets) != 1 || budgets[0].Limit.Cents != 40000 {
		t.Errorf("expected budgets unchanged after rollback, got %+v", budgets)
	}
}

func TestReplaceSettingsUnknownTenant(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.ReplaceSettings(context.Background(), "missing", Settings{Income: core.Money{Cents: 100}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown tenant, got %v", err)
	}
}

func TestMembersAndProfiles(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	tenant := seedTenant(t, repo, "Huis A")

	if err := repo.UpsertProfile(ctx, core.Profile{ID: "user-1", FullName: "Anna de Vries", Email: "anna@example.com"}); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	if err := repo.AddMember(ctx, core.Member{TenantID: tenant.ID, UserID: "user-1", Role: core.RoleAdmin}); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	// Member without a profile row still lists, with empty name.
	if err := repo.AddMember(ctx, core.Member{TenantID: tenant.ID, UserID: "user-2", Role: core.RoleStandardUser}); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	member, err := repo.GetMember(ctx, tenant.ID, "user-1")
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if member.Role != core.RoleAdmin || member.FullName != "Anna de Vries" {
		t.Errorf("unexpected member: %+v", member)
	}

	members, err := repo.ListMembers(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
}

func TestAddMemberRejectsInvalidRole(t *testing.T) {
	repo := newTestRepository(t)
	tenant := seedTenant(t, repo, "Huis A")

	err := repo.AddMember(context.Background(), core.Member{TenantID: tenant.ID, UserID: "user-1", Role: "owner"})
	if err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestExportLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	tenant := seedTenant(t, repo, "Huis A")

	first, err := repo.InsertExpense(ctx, testExpense(tenant.ID, 1, "eerste", 100))
	if err != nil {
		t.Fatalf("InsertExpense failed: %v", err)
	}
	second, err := repo.InsertExpense(ctx, testExpense(tenant.ID, 2, "tweede", 200))
	if err != nil {
		t.Fatalf("InsertExpense failed: %v", err)
	}

	pending, err := repo.PendingExportExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExportExpenses failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending expenses, got %d", len(pending))
	}

	if err := repo.MarkExported(ctx, first.ID); err != nil {
		t.Fatalf("MarkExported failed: %v", err)
	}
	if err := repo.IncrementExportAttempt(ctx, second.ID, "connection refused"); err != nil {
		t.Fatalf("IncrementExportAttempt failed: %v", err)
	}

	status, err := repo.ExportStatus(ctx, tenant.ID, first.ID)
	if err != nil {
		t.Fatalf("ExportStatus failed: %v", err)
	}
	if status != ExportDone {
		t.Errorf("expected status %q after export, got %q", ExportDone, status)
	}
	if _, err := repo.ExportStatus(ctx, tenant.ID, "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown expense, got %v", err)
	}

	pending, err = repo.PendingExportExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExportExpenses failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending expense, got %d", len(pending))
	}
	if pending[0].Expense.ID != second.ID || pending[0].Attempts != 1 {
		t.Errorf("unexpected pending row: id=%s attempts=%d", pending[0].Expense.ID, pending[0].Attempts)
	}

	if err := repo.MarkExportFailed(ctx, second.ID, "gave up"); err != nil {
		t.Fatalf("MarkExportFailed failed: %v", err)
	}
	pending, err = repo.PendingExportExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExportExpenses failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty queue after failure, got %d", len(pending))
	}

	requeued, err := repo.ResetExportErrors(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("ResetExportErrors failed: %v", err)
	}
	if requeued != 1 {
		t.Errorf("expected 1 requeued expense, got %d", requeued)
	}
	pending, err = repo.PendingExportExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExportExpenses failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Attempts != 0 {
		t.Fatalf("expected requeued expense with reset attempts, got %+v", pending)
	}
}
