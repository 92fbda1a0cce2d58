package httpserver

import (
	"net/http"

	"educhat/internal/activity"
	"educhat/internal/audit"
	"educhat/internal/auth"
	"educhat/internal/authz"
	"educhat/internal/httpserver/handlers"
	"educhat/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// scopeFromQuery reads the optional channel/macrosetor scope off the
// request for context-aware permission checks.
func scopeFromQuery(r *http.Request) authz.Context {
	return authz.Context{
		Channel:    r.URL.Query().Get("channel"),
		Macrosetor: r.URL.Query().Get("macrosetor"),
	}
}

func NewRouter(db *gorm.DB, cache *authz.DecisionCache, mon *activity.Monitor, lg *zap.SugaredLogger) http.Handler {
	rec := audit.NewRecorder(db, lg)
	resolver := authz.NewResolver(authz.NewGormStore(db), cache, lg)
	gate := authz.NewMiddleware(resolver, rec, authz.NewConversationOwnership(db), lg)
	tracker := activity.NewTracker(db, mon, rec, lg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)
	r.Post("/api/auth/login", handlers.Login(db, rec, lg))
	r.Group(func(protected chi.Router) {
		protected.Use(auth.JWTAuth(db))
		protected.Use(tracker.UpdateLastActivity())
		protected.Get("/api/me", handlers.Me(db, lg))
		protected.Post("/api/auth/logout", handlers.Logout(db, mon, rec, lg))

		protected.Group(func(inbox chi.Router) {
			inbox.Use(gate.ApplyHierarchicalFilter())
			inbox.With(gate.RequirePermission("conversa:ver", scopeFromQuery)).
				Get("/api/conversations", handlers.ListConversations(db, lg))
			inbox.With(gate.RequireHierarchicalPermission("conversa:ver_proprio", nil)).
				Get("/api/conversations/{id}", handlers.GetConversation(db, lg))
		})

		protected.Group(func(admin chi.Router) {
			admin.Use(gate.RequirePermission("permissao:gerenciar", nil))
			admin.Get("/api/admin/permissions", handlers.ListPermissions(db, lg))
			admin.Post("/api/admin/permissions", handlers.CreatePermission(db, rec, cache, lg))
			admin.Patch("/api/admin/permissions/{id}", handlers.UpdatePermission(db, rec, cache, lg))
			admin.Get("/api/admin/roles", handlers.ListRoles(db, lg))
			admin.Post("/api/admin/roles", handlers.CreateRole(db, rec, cache, lg))
			admin.Patch("/api/admin/roles/{id}", handlers.UpdateRole(db, rec, cache, lg))
			admin.Get("/api/admin/roles/{id}/permissions", handlers.ListRolePermissions(db, lg))
			admin.Put("/api/admin/roles/{id}/permissions", handlers.SetRolePermissions(db, rec, cache, lg))
			admin.Get("/api/admin/custom-rules", handlers.ListCustomRules(db, lg))
			admin.Post("/api/admin/custom-rules", handlers.CreateCustomRule(db, rec, cache, lg))
			admin.Delete("/api/admin/custom-rules/{id}", handlers.DeactivateCustomRule(db, rec, cache, lg))
		})

		protected.Group(func(admin chi.Router) {
			admin.Use(gate.RequireAnyPermission("permissao:gerenciar", "usuario:gerenciar"))
			admin.Get("/api/admin/users", handlers.ListUsers(db, lg))
			admin.Post("/api/admin/users", handlers.CreateUser(db, rec, cache, lg))
			admin.Patch("/api/admin/users/{id}", handlers.UpdateUser(db, rec, cache, lg))
			admin.Delete("/api/admin/users/{id}", handlers.DeactivateUser(db, rec, cache, lg))
		})

		protected.With(gate.RequirePermission("auditoria:ver", nil)).
			Get("/api/admin/audit-logs", handlers.ListAuditLogs(rec, lg))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}
