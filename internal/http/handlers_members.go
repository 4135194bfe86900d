package http

import (
	"log/slog"
	"net/http"

	"huishoudboek/internal/auth"
	"huishoudboek/internal/core"
)

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	members, err := s.repo.ListMembers(r.Context(), identity.TenantID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List members failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not load members")
		return
	}

	out := make([]map[string]any, 0, len(members))
	for _, m := range members {
		out = append(out, map[string]any{
			"user_id":   m.UserID,
			"role":      string(m.Role),
			"full_name": m.FullName,
			"email":     m.Email,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"members": out})
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	var req struct {
		UserID   string `json:"user_id"`
		Role     string `json:"role"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "missing user_id")
		return
	}
	role := core.Role(req.Role)
	if !role.Valid() {
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if req.FullName != "" || req.Email != "" {
		profile := core.Profile{
			ID:       req.UserID,
			FullName: sanitizeInput(req.FullName),
			Email:    sanitizeInput(req.Email),
		}
		if err := s.repo.UpsertProfile(r.Context(), profile); err != nil {
			slog.ErrorContext(r.Context(), "Upsert profile failed", "error", err)
			respondError(w, http.StatusInternalServerError, "could not save profile")
			return
		}
	}

	member := core.Member{TenantID: identity.TenantID, UserID: req.UserID, Role: role}
	if err := s.repo.AddMember(r.Context(), member); err != nil {
		slog.ErrorContext(r.Context(), "Add member failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not add member")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// handleTriggerExport requeues failed exports. The worker's poll loop picks
// them up; the endpoint returns how many were requeued.
func (s *Server) handleTriggerExport(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no identity")
		return
	}

	requeued, err := s.repo.ResetExportErrors(r.Context(), identity.TenantID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Reset export errors failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not requeue exports")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"requeued": requeued})
}
