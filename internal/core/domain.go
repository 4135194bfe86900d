package core

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleAdmin        Role = "admin"
	RoleStaff        Role = "staff"
	RoleStandardUser Role = "standard_user"
)

type (
	// Role is the membership role of a user within a tenant.
	Role string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is a single spending record owned by a tenant. Expenses are
	// immutable once created; the only mutation is deletion.
	Expense struct {
		ID           string
		TenantID     string
		UserID       string
		Date         Date
		Description  string
		Category     string
		Amount       Money
		ReceiptImage string // base64-encoded image, optional
		CreatedAt    time.Time
	}

	// BudgetLine is one category with its monthly limit.
	BudgetLine struct {
		Category string
		Limit    Money
	}

	// Tenant is a sharing scope: one household, or one coach with clients.
	Tenant struct {
		ID       string
		Name     string
		SheetURL string
	}

	Profile struct {
		ID       string
		FullName string
		Email    string
	}

	Member struct {
		TenantID string
		UserID   string
		Role     Role
		FullName string
		Email    string
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleStandardUser:
		return true
	}
	return false
}

// IsAdmin reports whether the role may manage budgets, settings and
// members. Staff act as admins for the tenants they coach.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleStaff
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// ISO formats the date as YYYY-MM-DD, the wire and storage format.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string into a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (b BudgetLine) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	return b.Limit.Validate()
}
