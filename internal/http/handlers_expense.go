package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"huishoudboek/internal/auth"
	"huishoudboek/internal/core"
	"huishoudboek/internal/services"
	"huishoudboek/internal/storage"
	"huishoudboek/internal/vision"
)

// maxReceiptImageBytes bounds uploaded receipt photos.
const maxReceiptImageBytes = 8 << 20

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	year, month := parseYearMonth(r)
	expenses, err := s.expenses.ListExpenses(r.Context(), identity.TenantID, year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses failed", "error", err, "tenant_id", identity.TenantID)
		respondError(w, http.StatusInternalServerError, "could not load expenses")
		return
	}

	out := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseJSON(e))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"year":     year,
		"month":    month,
		"expenses": out,
	})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	expense, err := s.expenses.GetExpense(r.Context(), identity.TenantID, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "expense not found")
			return
		}
		slog.ErrorContext(r.Context(), "Get expense failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not load expense")
		return
	}
	respondJSON(w, http.StatusOK, toExpenseJSON(expense))
}

type createExpenseRequest struct {
	Date         string `json:"date"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Amount       string `json:"amount"`
	ReceiptImage string `json:"receipt_image,omitempty"`
	// AllowDuplicate forces the save after a duplicate warning.
	AllowDuplicate bool `json:"allow_duplicate,omitempty"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	var req createExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount: "+err.Error())
		return
	}

	expense := core.Expense{
		TenantID:     identity.TenantID,
		UserID:       identity.UserID,
		Date:         date,
		Description:  sanitizeInput(req.Description),
		Category:     sanitizeInput(req.Category),
		Amount:       core.Money{Cents: cents},
		ReceiptImage: req.ReceiptImage,
	}

	saved, err := s.expenses.CreateExpense(r.Context(), expense, req.AllowDuplicate)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateExpense) {
			respondError(w, http.StatusConflict, "probable duplicate, resubmit with allow_duplicate to save anyway")
			return
		}
		if errors.Is(err, core.ErrEmptyDescription) || errors.Is(err, core.ErrEmptyCategory) ||
			errors.Is(err, core.ErrInvalidAmount) || errors.Is(err, core.ErrInvalidDate) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Create expense failed", "error", err, "tenant_id", identity.TenantID)
		respondError(w, http.StatusInternalServerError, "could not save expense")
		return
	}

	s.overviewCache.Delete(overviewCacheKey(identity.TenantID, saved.Date.Year(), saved.Date.Month()))
	respondJSON(w, http.StatusCreated, toExpenseJSON(saved))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	id := r.PathValue("id")
	expense, err := s.expenses.GetExpense(r.Context(), identity.TenantID, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.ErrorContext(r.Context(), "Load expense for delete failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not delete expense")
		return
	}

	if err := s.expenses.DeleteExpense(r.Context(), identity.TenantID, id); err != nil {
		slog.ErrorContext(r.Context(), "Delete expense failed", "error", err, "expense_id", id)
		respondError(w, http.StatusInternalServerError, "could not delete expense")
		return
	}

	if expense.ID != "" {
		s.overviewCache.Delete(overviewCacheKey(identity.TenantID, expense.Date.Year(), expense.Date.Month()))
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleScanReceipt accepts a multipart upload with an "image" part and
// returns the extracted fields. Nothing is persisted; the client reviews
// the result and calls POST /api/expenses to save.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	if err := r.ParseMultipartForm(maxReceiptImageBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing image part")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxReceiptImageBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read image")
		return
	}
	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	categories, err := s.settings.Categories(r.Context(), identity.TenantID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Load categories for scan failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not load categories")
		return
	}

	receipt, err := s.scanner.Interpret(r.Context(), image, mediaType, categories)
	if err != nil {
		var ie *vision.InterpretationError
		if errors.As(err, &ie) {
			// The raw reason goes to the client so the scan screen can
			// show it next to a retry action.
			respondError(w, http.StatusUnprocessableEntity, ie.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Receipt scan failed", "error", err)
		respondError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"amount":           receipt.Amount.Euros(),
		"amount_cents":     receipt.Amount.Cents,
		"date":             receipt.Date.ISO(),
		"category":         receipt.Category,
		"category_matched": receipt.CategoryMatched,
		"description":      receipt.Description,
	})
}
