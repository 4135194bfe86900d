package http

import (
	"errors"
	"log/slog"
	"net/http"

	"huishoudboek/internal/auth"
	"huishoudboek/internal/services"
)

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	year, month := parseYearMonth(r)
	key := overviewCacheKey(identity.TenantID, year, month)

	overview, cached := s.overviewCache.Get(key)
	if !cached {
		overview, err = s.overview.GetOverview(r.Context(), identity.TenantID, year, month)
		if err != nil {
			if errors.Is(err, services.ErrInvalidMonth) {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			slog.ErrorContext(r.Context(), "Overview failed", "error", err, "tenant_id", identity.TenantID)
			respondError(w, http.StatusInternalServerError, "could not load overview")
			return
		}
		s.overviewCache.Set(key, overview)
	}

	expenses := make([]expenseJSON, 0, len(overview.Expenses))
	for _, e := range overview.Expenses {
		expenses = append(expenses, toExpenseJSON(e))
	}
	categories := make([]budgetStatusJSON, 0, len(overview.Summary.Categories))
	for _, c := range overview.Summary.Categories {
		categories = append(categories, toBudgetStatusJSON(c))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"year":     overview.Year,
		"month":    overview.Month,
		"income":   overview.Income.Euros(),
		"expenses": expenses,
		"summary": map[string]any{
			"categories":      categories,
			"total_limit":     overview.Summary.TotalLimit.Euros(),
			"total_spent":     overview.Summary.TotalSpent.Euros(),
			"total_remaining": overview.Summary.TotalRemaining.Euros(),
			"over_budget":     overview.Summary.OverBudget,
		},
		"cached": cached,
	})
}
