package http

import (
	"errors"
	"log/slog"
	"net/http"

	"huishoudboek/internal/auth"
	"huishoudboek/internal/core"
	"huishoudboek/internal/services"
	"huishoudboek/internal/storage"
)

type budgetLineJSON struct {
	Category string `json:"category"`
	Limit    string `json:"limit"`
}

func parseBudgetLines(in []budgetLineJSON) ([]core.BudgetLine, error) {
	budgets := make([]core.BudgetLine, 0, len(in))
	for _, b := range in {
		cents, err := core.ParseDecimalToCents(b.Limit)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, core.BudgetLine{
			Category: sanitizeInput(b.Category),
			Limit:    core.Money{Cents: cents},
		})
	}
	return budgets, nil
}

func budgetLinesJSON(budgets []core.BudgetLine) []map[string]any {
	out := make([]map[string]any, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, map[string]any{
			"category":    b.Category,
			"limit":       b.Limit.Euros(),
			"limit_cents": b.Limit.Cents,
		})
	}
	return out
}

func (s *Server) handleGetBudgets(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	budgets, err := s.repo.GetBudgets(r.Context(), identity.TenantID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Get budgets failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not load budgets")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"budgets": budgetLinesJSON(budgets)})
}

func (s *Server) handleReplaceBudgets(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	var req struct {
		Budgets []budgetLineJSON `json:"budgets"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	budgets, err := parseBudgetLines(req.Budgets)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid budget limit: "+err.Error())
		return
	}

	if err := s.repo.ReplaceBudgets(r.Context(), identity.TenantID, budgets); err != nil {
		slog.ErrorContext(r.Context(), "Replace budgets failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not save budgets")
		return
	}

	s.invalidateOverviews(identity.TenantID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	income, err := s.repo.GetIncome(r.Context(), identity.TenantID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Get income failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not load income")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"income":       income.Euros(),
		"income_cents": income.Cents,
	})
}

func (s *Server) handleUpsertIncome(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	var req struct {
		Income string `json:"income"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	cents, err := core.ParseDecimalToCents(req.Income)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid income: "+err.Error())
		return
	}

	if err := s.repo.UpsertIncome(r.Context(), identity.TenantID, core.Money{Cents: cents}); err != nil {
		slog.ErrorContext(r.Context(), "Upsert income failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not save income")
		return
	}

	s.invalidateOverviews(identity.TenantID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	settings, err := s.settings.GetSettings(r.Context(), identity.TenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "tenant not found")
			return
		}
		slog.ErrorContext(r.Context(), "Get settings failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not load settings")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"income":    settings.Income.Euros(),
		"sheet_url": settings.SheetURL,
		"budgets":   budgetLinesJSON(settings.Budgets),
	})
}

// handleSaveSettings replaces income, sheet URL and the full budget set in
// one transaction.
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	var req struct {
		Income   string           `json:"income"`
		SheetURL string           `json:"sheet_url"`
		Budgets  []budgetLineJSON `json:"budgets"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	incomeCents, err := core.ParseDecimalToCents(req.Income)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid income: "+err.Error())
		return
	}
	budgets, err := parseBudgetLines(req.Budgets)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid budget limit: "+err.Error())
		return
	}

	settings := services.TenantSettings{
		Income:   core.Money{Cents: incomeCents},
		SheetURL: sanitizeInput(req.SheetURL),
		Budgets:  budgets,
	}
	if err := s.settings.SaveSettings(r.Context(), identity.TenantID, settings); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "tenant not found")
			return
		}
		slog.ErrorContext(r.Context(), "Save settings failed", "error", err, "tenant_id", identity.TenantID)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.invalidateOverviews(identity.TenantID)
	w.WriteHeader(http.StatusNoContent)
}
