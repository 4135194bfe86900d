// Package http exposes the JSON API for the budget tracker.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"huishoudboek/internal/auth"
	"huishoudboek/internal/cache"
	"huishoudboek/internal/config"
	"huishoudboek/internal/middleware/ratelimit"
	"huishoudboek/internal/middleware/security"
	"huishoudboek/internal/middleware/trace"
	"huishoudboek/internal/services"
	"huishoudboek/internal/storage"
	"huishoudboek/internal/vision"
)

type Server struct {
	http.Server

	cfg      *config.Config
	expenses *services.ExpenseService
	overview *services.OverviewService
	settings *services.SettingsService
	scanner  *vision.Client
	authSvc  *auth.Service
	repo     *storage.Repository

	overviewCache *cache.LRUCache[services.Overview]
	cacheManager  *cache.Manager
	rateLimiter   *ratelimit.Limiter
	shutdownOnce  sync.Once
}

// Deps bundles the collaborators the server needs.
type Deps struct {
	Config   *config.Config
	Expenses *services.ExpenseService
	Overview *services.OverviewService
	Settings *services.SettingsService
	Scanner  *vision.Client
	Auth     *auth.Service
	Repo     *storage.Repository
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(d Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              ":" + d.Config.Port,
			Handler:           nil, // set below, after middleware wrapping
			ReadHeaderTimeout: 10 * time.Second,
		},
		cfg:           d.Config,
		expenses:      d.Expenses,
		overview:      d.Overview,
		settings:      d.Settings,
		scanner:       d.Scanner,
		authSvc:       d.Auth,
		repo:          d.Repo,
		overviewCache: cache.NewLRUCache[services.Overview](200, time.Minute),
		cacheManager:  cache.NewManager(),
		rateLimiter:   ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	s.cacheManager.Register(s.overviewCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/setup", s.handleSetupStatus)

	mux.Handle("GET /api/overview", s.authed(s.handleOverview))
	mux.Handle("GET /api/expenses", s.authed(s.handleListExpenses))
	mux.Handle("POST /api/expenses", s.authed(s.handleCreateExpense))
	mux.Handle("GET /api/expenses/{id}", s.authed(s.handleGetExpense))
	mux.Handle("DELETE /api/expenses/{id}", s.authed(s.handleDeleteExpense))
	mux.Handle("POST /api/scan", s.authed(s.handleScanReceipt))

	mux.Handle("GET /api/budgets", s.authed(s.handleGetBudgets))
	mux.Handle("PUT /api/budgets", s.admin(s.handleReplaceBudgets))
	mux.Handle("GET /api/income", s.authed(s.handleGetIncome))
	mux.Handle("PUT /api/income", s.admin(s.handleUpsertIncome))
	mux.Handle("GET /api/settings", s.authed(s.handleGetSettings))
	mux.Handle("PUT /api/settings", s.admin(s.handleSaveSettings))

	mux.Handle("GET /api/members", s.admin(s.handleListMembers))
	mux.Handle("POST /api/members", s.admin(s.handleAddMember))
	mux.Handle("POST /api/export", s.admin(s.handleTriggerExport))

	// Middleware applies outside-in: trace logs every request, then
	// headers, then rate limiting, then the setup gate.
	var handler http.Handler = mux
	handler = s.setupGate(handler)
	handler = s.rateLimiter.Middleware(security.ExtractClientIP)(handler)
	handler = security.HeadersMiddleware(security.DefaultHeadersConfig())(handler)
	handler = trace.Middleware(security.ExtractClientIP)(handler)
	s.Server.Handler = handler

	return s
}

// setupGate returns 503 for the scan route while the vision integration is
// unconfigured or still holds placeholder credentials. The rest of the API
// keeps working; /api/setup explains what is missing.
func (s *Server) setupGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/scan" && s.cfg.SetupRequired() {
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error":  "receipt scanning is not configured",
				"issues": s.cfg.SetupIssues(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authed requires a valid bearer token and stores the identity in the
// request context.
func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		identity, err := s.authSvc.ValidateToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

// admin is authed plus an admin role requirement.
func (s *Server) admin(next http.HandlerFunc) http.Handler {
	return s.authed(func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.FromContext(r.Context())
		if err != nil || !identity.Role.IsAdmin() {
			respondError(w, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleSetupStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"setup_required": s.cfg.SetupRequired(),
		"issues":         s.cfg.SetupIssues(),
	})
}

// Shutdown stops the HTTP server and background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func overviewCacheKey(tenantID string, year, month int) string {
	return fmt.Sprintf("%s:%04d-%02d", tenantID, year, month)
}

// invalidateOverviews drops every cached overview of a tenant. Budget,
// income and settings writes change the totals for all months at once.
func (s *Server) invalidateOverviews(tenantID string) {
	s.overviewCache.DeletePrefix(tenantID + ":")
}
