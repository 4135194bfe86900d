package services

import (
	"context"
	"fmt"

	"huishoudboek/internal/core"
	"huishoudboek/internal/storage"

	"golang.org/x/sync/errgroup"
)

// TenantSettings is everything the settings screen edits in one save.
type TenantSettings struct {
	Income   core.Money
	SheetURL string
	Budgets  []core.BudgetLine
}

type SettingsService struct {
	repo *storage.Repository
}

func NewSettingsService(repo *storage.Repository) *SettingsService {
	return &SettingsService{repo: repo}
}

func (s *SettingsService) GetSettings(ctx context.Context, tenantID string) (TenantSettings, error) {
	var (
		tenant  core.Tenant
		budgets []core.BudgetLine
		income  core.Money
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tenant, err = s.repo.GetTenant(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("get tenant: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		budgets, err = s.repo.GetBudgets(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("get budgets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		income, err = s.repo.GetIncome(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("get income: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return TenantSettings{}, err
	}

	return TenantSettings{Income: income, SheetURL: tenant.SheetURL, Budgets: budgets}, nil
}

// SaveSettings replaces the tenant's income, sheet URL and full budget set
// in a single transaction. A mid-save failure leaves the previous settings
// untouched.
func (s *SettingsService) SaveSettings(ctx context.Context, tenantID string, settings TenantSettings) error {
	seen := make(map[core.CategoryKey]string, len(settings.Budgets))
	for _, b := range settings.Budgets {
		key := core.Key(b.Category)
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("duplicate budget category %q matches %q", b.Category, prev)
		}
		seen[key] = b.Category
	}

	err := s.repo.ReplaceSettings(ctx, tenantID, storage.Settings{
		Income:   settings.Income,
		SheetURL: settings.SheetURL,
		Budgets:  settings.Budgets,
	})
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Categories returns the tenant's permitted category names in budget order.
func (s *SettingsService) Categories(ctx context.Context, tenantID string) ([]string, error) {
	budgets, err := s.repo.GetBudgets(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get budgets: %w", err)
	}
	names := make([]string, 0, len(budgets))
	for _, b := range budgets {
		names = append(names, b.Category)
	}
	return names, nil
}
