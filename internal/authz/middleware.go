package authz

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"educhat/internal/audit"
	"educhat/internal/auth"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OwnSuffix marks permissions restricted to resources owned by the
// requesting user, e.g. "conversa:ver_proprio".
const OwnSuffix = "_proprio"

// ContextExtractor pulls the scoping context out of a request. A nil
// extractor means an empty context.
type ContextExtractor func(*http.Request) Context

// ResourceIDExtractor pulls the target resource id out of a request for
// hierarchical checks. Falls back to the "id" URL parameter when nil.
type ResourceIDExtractor func(*http.Request) string

// PermissionChecker is what the middleware needs from the resolver.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID uint, permission string, c *Context) bool
}

// OwnershipVerifier answers whether a resource belongs to a user. The
// concrete check lives with the resource's data layer.
type OwnershipVerifier interface {
	VerifyOwnership(ctx context.Context, userID uint, resourceID string) (bool, error)
}

// Middleware gates HTTP handlers on resolved permissions and writes the
// denial trail. Every terminal denial is audited before the response goes
// out; audit failures never alter the response.
type Middleware struct {
	checker PermissionChecker
	sink    audit.Sink
	owners  OwnershipVerifier
	lg      *zap.SugaredLogger
}

func NewMiddleware(checker PermissionChecker, sink audit.Sink, owners OwnershipVerifier, lg *zap.SugaredLogger) *Middleware {
	return &Middleware{checker: checker, sink: sink, owners: owners, lg: lg}
}

// RequirePermission rejects with 401 when no principal is attached and 403
// when the resolver denies. Grants proceed without an audit entry.
func (m *Middleware) RequirePermission(permission string, extract ContextExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.FromContext(r.Context())
			if !claims.Authenticated() {
				m.recordUnauthenticated(r, permission)
				respondMessage(w, http.StatusUnauthorized, "Não autenticado")
				return
			}
			var c Context
			if extract != nil {
				c = extract(r)
			}
			if !m.checker.HasPermission(r.Context(), claims.UserID, permission, &c) {
				m.recordDenial(r, claims.UserID, permission, c)
				respondMessage(w, http.StatusForbidden, "Acesso negado - permissão insuficiente")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission proceeds on the first permission that resolves true.
func (m *Middleware) RequireAnyPermission(permissions ...string) func(http.Handler) http.Handler {
	joined := strings.Join(permissions, ",")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.FromContext(r.Context())
			if !claims.Authenticated() {
				m.recordUnauthenticated(r, joined)
				respondMessage(w, http.StatusUnauthorized, "Não autenticado")
				return
			}
			for _, p := range permissions {
				if m.checker.HasPermission(r.Context(), claims.UserID, p, &Context{}) {
					next.ServeHTTP(w, r)
					return
				}
			}
			m.recordDenial(r, claims.UserID, joined, Context{})
			respondMessage(w, http.StatusForbidden, "Acesso negado - permissão insuficiente")
		})
	}
}

// RequireHierarchicalPermission is the stricter gate for "_proprio"
// permissions: the admin role bypasses, a missing resource id is a caller
// error (400), and ownership of the resource is verified through the
// OwnershipVerifier. Both grants and denials are audited here.
func (m *Middleware) RequireHierarchicalPermission(permission string, extractID ResourceIDExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.FromContext(r.Context())
			if !claims.Authenticated() {
				m.recordUnauthenticated(r, permission)
				respondMessage(w, http.StatusUnauthorized, "Não autenticado")
				return
			}
			if claims.IsAdmin() {
				m.recordGrant(r, claims.UserID, permission, "")
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasSuffix(permission, OwnSuffix) {
				if !m.checker.HasPermission(r.Context(), claims.UserID, permission, &Context{}) {
					m.recordDenial(r, claims.UserID, permission, Context{})
					respondMessage(w, http.StatusForbidden, "Acesso negado - permissão insuficiente")
					return
				}
				m.recordGrant(r, claims.UserID, permission, "")
				next.ServeHTTP(w, r)
				return
			}

			resourceID := ""
			if extractID != nil {
				resourceID = extractID(r)
			}
			if resourceID == "" {
				resourceID = chi.URLParam(r, "id")
			}
			if resourceID == "" {
				// Caller bug, not an access attempt: no audit entry.
				respondMessage(w, http.StatusBadRequest, "Identificador do recurso não informado")
				return
			}

			allowed := m.checker.HasPermission(r.Context(), claims.UserID, permission, &Context{ResourceID: resourceID})
			if allowed && m.owners != nil {
				owns, err := m.owners.VerifyOwnership(r.Context(), claims.UserID, resourceID)
				if err != nil {
					m.lg.Errorw("ownership check failed",
						"user_id", claims.UserID, "resource_id", resourceID, "error", err)
					owns = false
				}
				allowed = owns
			}
			if !allowed {
				m.recordDenial(r, claims.UserID, permission, Context{ResourceID: resourceID})
				respondMessage(w, http.StatusForbidden, "Acesso negado - o recurso não pertence ao usuário")
				return
			}
			m.recordGrant(r, claims.UserID, permission, resourceID)
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) recordUnauthenticated(r *http.Request, resource string) {
	m.sink.Record(r.Context(), audit.Entry{
		Action:    audit.ActionAccessDenied,
		Resource:  resource,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
		Result:    audit.ResultUnauthorized,
	})
}

func (m *Middleware) recordDenial(r *http.Request, userID uint, resource string, c Context) {
	m.sink.Record(r.Context(), audit.Entry{
		UserID:     &userID,
		Action:     audit.ActionPermissionDenied,
		Resource:   resource,
		ResourceID: c.ResourceID,
		Channel:    c.Channel,
		Macrosetor: c.Macrosetor,
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Result:     audit.ResultUnauthorized,
	})
}

func (m *Middleware) recordGrant(r *http.Request, userID uint, resource, resourceID string) {
	m.sink.Record(r.Context(), audit.Entry{
		UserID:     &userID,
		Action:     audit.ActionAccessGranted,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Result:     audit.ResultSuccess,
	})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
