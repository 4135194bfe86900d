package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"huishoudboek/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Export statuses for the expenses table.
const (
	ExportPending = "pending"
	ExportDone    = "exported"
	ExportError   = "error"
)

var ErrNotFound = errors.New("not found")

// Repository is the tenant-scoped data gateway. Every operation takes the
// tenant identifier explicitly; there is no ambient tenant context.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

// Ping checks database liveness, used by the readiness probe.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertExpense stores a new expense and returns it with its assigned id.
func (r *Repository) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("validate expense: %w", err)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, tenant_id, user_id, amount_cents, description, category, date, receipt_image, created_at, export_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.UserID, e.Amount.Cents, e.Description, e.Category, e.Date.ISO(), e.ReceiptImage, e.CreatedAt, ExportPending)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"tenant_id", e.TenantID,
		"description", e.Description,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.ISO())

	return e, nil
}

// GetExpense retrieves a single expense by id within a tenant.
func (r *Repository) GetExpense(ctx context.Context, tenantID, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, user_id, amount_cents, description, category, date, receipt_image, created_at
		FROM expenses WHERE tenant_id = ? AND id = ?`, tenantID, id)
	e, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, ErrNotFound
		}
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns the tenant's expenses for a month, newest first.
func (r *Repository) ListExpenses(ctx context.Context, tenantID string, year, month int) ([]core.Expense, error) {
	start := core.NewDate(year, month, 1)
	end := core.Date{Time: start.AddDate(0, 1, 0)}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, amount_cents, description, category, date, receipt_image, created_at
		FROM expenses
		WHERE tenant_id = ? AND date >= ? AND date < ?
		ORDER BY date DESC, created_at DESC`,
		tenantID, start.ISO(), end.ISO())
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// DeleteExpense removes an expense. Deleting an unknown id is not an error:
// last write wins and a concurrent delete may have come first.
func (r *Repository) DeleteExpense(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.InfoContext(ctx, "Expense deleted", "id", id, "tenant_id", tenantID)
	}
	return nil
}

// GetBudgets returns the tenant's budget lines in category order.
func (r *Repository) GetBudgets(ctx context.Context, tenantID string) ([]core.BudgetLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, limit_cents FROM budgets WHERE tenant_id = ? ORDER BY category`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.BudgetLine
	for rows.Next() {
		var b core.BudgetLine
		var limit any
		if err := rows.Scan(&b.Category, &limit); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Limit = core.Money{Cents: core.CentsFromStored(limit)}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// ReplaceBudgets rewrites the tenant's whole budget set in one transaction.
func (r *Repository) ReplaceBudgets(ctx context.Context, tenantID string, budgets []core.BudgetLine) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace budgets: %w", err)
	}
	defer tx.Rollback()

	if err := replaceBudgetsTx(ctx, tx, tenantID, budgets); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace budgets: %w", err)
	}

	slog.InfoContext(ctx, "Budgets replaced", "tenant_id", tenantID, "count", len(budgets))
	return nil
}

func replaceBudgetsTx(ctx context.Context, tx *sql.Tx, tenantID string, budgets []core.BudgetLine) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE tenant_id = ?`, tenantID); err != nil {
		return fmt.Errorf("clear budgets: %w", err)
	}
	for _, b := range budgets {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("validate budget %q: %w", b.Category, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO budgets (tenant_id, category, limit_cents) VALUES (?, ?, ?)`,
			tenantID, b.Category, b.Limit.Cents); err != nil {
			return fmt.Errorf("insert budget %q: %w", b.Category, err)
		}
	}
	return nil
}

// GetIncome returns the tenant's monthly income; a missing row is zero.
func (r *Repository) GetIncome(ctx context.Context, tenantID string) (core.Money, error) {
	var amount any
	err := r.db.QueryRowContext(ctx, `SELECT amount_cents FROM incomes WHERE tenant_id = ?`, tenantID).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("get income: %w", err)
	}
	return core.Money{Cents: core.CentsFromStored(amount)}, nil
}

// UpsertIncome updates the income row if present, inserts it otherwise.
func (r *Repository) UpsertIncome(ctx context.Context, tenantID string, amount core.Money) error {
	if err := amount.Validate(); err != nil {
		return fmt.Errorf("validate income: %w", err)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO incomes (tenant_id, amount_cents) VALUES (?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET amount_cents = excluded.amount_cents`,
		tenantID, amount.Cents)
	if err != nil {
		return fmt.Errorf("upsert income: %w", err)
	}
	return nil
}

// Settings is the per-tenant configuration written by a settings save.
type Settings struct {
	Income   core.Money
	SheetURL string
	Budgets  []core.BudgetLine
}

// ReplaceSettings applies a whole settings save atomically: income upsert,
// sheet URL update and budget rewrite commit or roll back together. A
// mid-sequence failure therefore leaves every prior value intact.
func (r *Repository) ReplaceSettings(ctx context.Context, tenantID string, s Settings) error {
	if err := s.Income.Validate(); err != nil {
		return fmt.Errorf("validate income: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings save: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE tenants SET sheet_url = ? WHERE id = ?`, s.SheetURL, tenantID)
	if err != nil {
		return fmt.Errorf("update sheet url: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update sheet url: %w", ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO incomes (tenant_id, amount_cents) VALUES (?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET amount_cents = excluded.amount_cents`,
		tenantID, s.Income.Cents); err != nil {
		return fmt.Errorf("upsert income: %w", err)
	}

	if err := replaceBudgetsTx(ctx, tx, tenantID, s.Budgets); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings save: %w", err)
	}

	slog.InfoContext(ctx, "Settings saved",
		"tenant_id", tenantID,
		"income_cents", s.Income.Cents,
		"budget_count", len(s.Budgets))
	return nil
}

// CreateTenant stores a new tenant.
func (r *Repository) CreateTenant(ctx context.Context, t core.Tenant) (core.Tenant, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO tenants (id, name, sheet_url) VALUES (?, ?, ?)`,
		t.ID, t.Name, t.SheetURL)
	if err != nil {
		return core.Tenant{}, fmt.Errorf("create tenant: %w", err)
	}
	return t, nil
}

func (r *Repository) GetTenant(ctx context.Context, id string) (core.Tenant, error) {
	var t core.Tenant
	err := r.db.QueryRowContext(ctx, `SELECT id, name, sheet_url FROM tenants WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.SheetURL)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Tenant{}, ErrNotFound
	}
	if err != nil {
		return core.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

// UpsertProfile stores or refreshes a user profile.
func (r *Repository) UpsertProfile(ctx context.Context, p core.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, full_name, email) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET full_name = excluded.full_name, email = excluded.email`,
		p.ID, p.FullName, p.Email)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *Repository) GetProfile(ctx context.Context, id string) (core.Profile, error) {
	var p core.Profile
	err := r.db.QueryRowContext(ctx, `SELECT id, full_name, email FROM profiles WHERE id = ?`, id).
		Scan(&p.ID, &p.FullName, &p.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// AddMember enrolls a user into a tenant with a role.
func (r *Repository) AddMember(ctx context.Context, m core.Member) error {
	if !m.Role.Valid() {
		return fmt.Errorf("add member: invalid role %q", m.Role)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenant_members (tenant_id, user_id, role) VALUES (?, ?, ?)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET role = excluded.role`,
		m.TenantID, m.UserID, m.Role)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// GetMember resolves one membership row, used for role checks.
func (r *Repository) GetMember(ctx context.Context, tenantID, userID string) (core.Member, error) {
	var m core.Member
	err := r.db.QueryRowContext(ctx, `
		SELECT tm.tenant_id, tm.user_id, tm.role, COALESCE(p.full_name, ''), COALESCE(p.email, '')
		FROM tenant_members tm
		LEFT JOIN profiles p ON p.id = tm.user_id
		WHERE tm.tenant_id = ? AND tm.user_id = ?`, tenantID, userID).
		Scan(&m.TenantID, &m.UserID, &m.Role, &m.FullName, &m.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Member{}, ErrNotFound
	}
	if err != nil {
		return core.Member{}, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMembers returns all memberships of a tenant with profile data.
func (r *Repository) ListMembers(ctx context.Context, tenantID string) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tm.tenant_id, tm.user_id, tm.role, COALESCE(p.full_name, ''), COALESCE(p.email, '')
		FROM tenant_members tm
		LEFT JOIN profiles p ON p.id = tm.user_id
		WHERE tm.tenant_id = ?
		ORDER BY p.full_name, tm.user_id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		var m core.Member
		if err := rows.Scan(&m.TenantID, &m.UserID, &m.Role, &m.FullName, &m.Email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// PendingExport is an expense awaiting spreadsheet export.
type PendingExport struct {
	Expense  core.Expense
	Attempts int64
}

// PendingExportExpenses returns up to limit expenses still waiting for
// export, oldest first.
func (r *Repository) PendingExportExpenses(ctx context.Context, limit int) ([]PendingExport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, amount_cents, description, category, date, receipt_image, created_at, export_attempts
		FROM expenses
		WHERE export_status = ?
		ORDER BY created_at ASC
		LIMIT ?`, ExportPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending export expenses: %w", err)
	}
	defer rows.Close()

	var pending []PendingExport
	for rows.Next() {
		var (
			e         core.Expense
			amount    any
			date      string
			createdAt time.Time
			attempts  int64
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &amount, &e.Description, &e.Category, &date, &e.ReceiptImage, &createdAt, &attempts); err != nil {
			return nil, fmt.Errorf("scan pending expense: %w", err)
		}
		e.Amount = core.Money{Cents: core.CentsFromStored(amount)}
		if d, err := core.ParseDate(date); err == nil {
			e.Date = d
		}
		e.CreatedAt = createdAt
		pending = append(pending, PendingExport{Expense: e, Attempts: attempts})
	}
	return pending, rows.Err()
}

// ExportStatus reports the export lifecycle state of an expense.
func (r *Repository) ExportStatus(ctx context.Context, tenantID, id string) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT export_status FROM expenses WHERE tenant_id = ? AND id = ?`, tenantID, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get export status: %w", err)
	}
	return status, nil
}

// MarkExported marks an expense as successfully exported.
func (r *Repository) MarkExported(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET export_status = ?, export_error = '' WHERE id = ?`, ExportDone, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	slog.InfoContext(ctx, "Expense marked as exported", "id", id)
	return nil
}

// IncrementExportAttempt records a failed attempt while keeping the
// expense in the pending queue.
func (r *Repository) IncrementExportAttempt(ctx context.Context, id, reason string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET export_attempts = export_attempts + 1, export_error = ? WHERE id = ?`, reason, id); err != nil {
		return fmt.Errorf("increment export attempt: %w", err)
	}
	return nil
}

// MarkExportFailed takes an expense out of the queue after repeated
// failures. The local row stays untouched: the export divergence is
// visible through the status, never silently rolled back.
func (r *Repository) MarkExportFailed(ctx context.Context, id, reason string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET export_status = ?, export_error = ? WHERE id = ?`, ExportError, reason, id); err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	slog.WarnContext(ctx, "Expense export failed permanently", "id", id, "reason", reason)
	return nil
}

// ResetExportErrors requeues all failed exports of a tenant.
func (r *Repository) ResetExportErrors(ctx context.Context, tenantID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET export_status = ?, export_attempts = 0, export_error = ''
		WHERE tenant_id = ? AND export_status = ?`, ExportPending, tenantID, ExportError)
	if err != nil {
		return 0, fmt.Errorf("reset export errors: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e         core.Expense
		amount    any
		date      string
		createdAt time.Time
	)
	if err := row.Scan(&e.ID, &e.TenantID, &e.UserID, &amount, &e.Description, &e.Category, &date, &e.ReceiptImage, &createdAt); err != nil {
		return core.Expense{}, err
	}
	// SQLite columns are dynamically typed; rows written by other clients
	// may carry amounts as TEXT. Malformed values read back as 0.
	e.Amount = core.Money{Cents: core.CentsFromStored(amount)}
	if d, err := core.ParseDate(date); err == nil {
		e.Date = d
	}
	e.CreatedAt = createdAt
	return e, nil
}
