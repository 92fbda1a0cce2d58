package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"educhat/internal/audit"
	"educhat/internal/auth"
	"educhat/internal/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type fakeChecker struct {
	allow map[string]bool
	calls int
}

func (f *fakeChecker) HasPermission(_ context.Context, userID uint, permission string, _ *Context) bool {
	f.calls++
	return f.allow[permission]
}

type memSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *memSink) Record(_ context.Context, e audit.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *memSink) all() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.entries...)
}

type fakeOwners struct {
	owns map[string]bool
}

func (f *fakeOwners) VerifyOwnership(_ context.Context, userID uint, resourceID string) (bool, error) {
	return f.owns[resourceID], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func authedRequest(method, target string, claims auth.Claims) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	return r.WithContext(auth.WithClaims(r.Context(), claims))
}

func TestRequirePermissionUnauthenticated(t *testing.T) {
	sink := &memSink{}
	m := NewMiddleware(&fakeChecker{}, sink, nil, zap.NewNop().Sugar())

	rr := httptest.NewRecorder()
	m.RequirePermission("conversa:ver", nil)(okHandler()).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Não autenticado") {
		t.Fatalf("body = %q", rr.Body.String())
	}
	entries := sink.all()
	if len(entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(entries))
	}
	e := entries[0]
	if e.UserID != nil || e.Action != audit.ActionAccessDenied || e.Result != audit.ResultUnauthorized {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestRequirePermissionDenied(t *testing.T) {
	sink := &memSink{}
	m := NewMiddleware(&fakeChecker{}, sink, nil, zap.NewNop().Sugar())

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodGet, "/api/conversations?channel=whatsapp", auth.Claims{UserID: 7, Role: "atendente"})
	m.RequirePermission("conversa:ver", func(r *http.Request) Context {
		return Context{Channel: r.URL.Query().Get("channel")}
	})(okHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Acesso negado - permissão insuficiente") {
		t.Fatalf("body = %q", rr.Body.String())
	}
	entries := sink.all()
	if len(entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(entries))
	}
	e := entries[0]
	if e.UserID == nil || *e.UserID != 7 {
		t.Fatalf("entry user = %v", e.UserID)
	}
	if e.Action != audit.ActionPermissionDenied || e.Resource != "conversa:ver" || e.Channel != "whatsapp" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestRequirePermissionGrantedIsSilent(t *testing.T) {
	sink := &memSink{}
	m := NewMiddleware(&fakeChecker{allow: map[string]bool{"conversa:ver": true}}, sink, nil, zap.NewNop().Sugar())

	rr := httptest.NewRecorder()
	m.RequirePermission("conversa:ver", nil)(okHandler()).
		ServeHTTP(rr, authedRequest(http.MethodGet, "/api/conversations", auth.Claims{UserID: 7, Role: "atendente"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if n := len(sink.all()); n != 0 {
		t.Fatalf("got %d audit entries, want 0", n)
	}
}

func TestRequireAnyPermission(t *testing.T) {
	sink := &memSink{}
	checker := &fakeChecker{allow: map[string]bool{"usuario:gerenciar": true}}
	m := NewMiddleware(checker, sink, nil, zap.NewNop().Sugar())

	rr := httptest.NewRecorder()
	m.RequireAnyPermission("permissao:gerenciar", "usuario:gerenciar")(okHandler()).
		ServeHTTP(rr, authedRequest(http.MethodGet, "/api/admin/users", auth.Claims{UserID: 7, Role: "gerente"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	checker.allow = nil
	rr = httptest.NewRecorder()
	m.RequireAnyPermission("permissao:gerenciar", "usuario:gerenciar")(okHandler()).
		ServeHTTP(rr, authedRequest(http.MethodGet, "/api/admin/users", auth.Claims{UserID: 7, Role: "gerente"}))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	entries := sink.all()
	if len(entries) != 1 || entries[0].Resource != "permissao:gerenciar,usuario:gerenciar" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestHierarchicalMissingResourceID(t *testing.T) {
	sink := &memSink{}
	checker := &fakeChecker{allow: map[string]bool{"conversa:ver_proprio": true}}
	m := NewMiddleware(checker, sink, &fakeOwners{}, zap.NewNop().Sugar())

	rr := httptest.NewRecorder()
	m.RequireHierarchicalPermission("conversa:ver_proprio", nil)(okHandler()).
		ServeHTTP(rr, authedRequest(http.MethodGet, "/api/conversations/", auth.Claims{UserID: 7, Role: "atendente"}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Identificador do recurso não informado") {
		t.Fatalf("body = %q", rr.Body.String())
	}
	if checker.calls != 0 {
		t.Fatalf("resolver consulted %d times on a malformed request", checker.calls)
	}
	if n := len(sink.all()); n != 0 {
		t.Fatalf("got %d audit entries, want 0", n)
	}
}

func TestHierarchicalAdminBypass(t *testing.T) {
	sink := &memSink{}
	checker := &fakeChecker{}
	m := NewMiddleware(checker, sink, &fakeOwners{}, zap.NewNop().Sugar())

	rr := httptest.NewRecorder()
	m.RequireHierarchicalPermission("conversa:ver_proprio", nil)(okHandler()).
		ServeHTTP(rr, authedRequest(http.MethodGet, "/api/conversations/42", auth.Claims{UserID: 1, Role: "admin"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if checker.calls != 0 {
		t.Fatal("admin bypass must not consult the resolver")
	}
	entries := sink.all()
	if len(entries) != 1 || entries[0].Action != audit.ActionAccessGranted {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestHierarchicalOwnership(t *testing.T) {
	sink := &memSink{}
	checker := &fakeChecker{allow: map[string]bool{"conversa:ver_proprio": true}}
	owners := &fakeOwners{owns: map[string]bool{"42": true}}
	m := NewMiddleware(checker, sink, owners, zap.NewNop().Sugar())

	mw := m.RequireHierarchicalPermission("conversa:ver_proprio", func(r *http.Request) string {
		return chi.URLParam(r, "id")
	})

	router := chi.NewRouter()
	router.With(mw).Get("/api/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/api/conversations/42", auth.Claims{UserID: 7, Role: "atendente"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("owned resource: status = %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/api/conversations/99", auth.Claims{UserID: 7, Role: "atendente"}))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign resource: status = %d, want 403", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "o recurso não pertence ao usuário") {
		t.Fatalf("body = %q", rr.Body.String())
	}

	entries := sink.all()
	if len(entries) != 2 {
		t.Fatalf("got %d audit entries, want 2", len(entries))
	}
	if entries[0].Action != audit.ActionAccessGranted || entries[0].ResourceID != "42" {
		t.Fatalf("grant entry %+v", entries[0])
	}
	if entries[1].Action != audit.ActionPermissionDenied || entries[1].ResourceID != "99" {
		t.Fatalf("denial entry %+v", entries[1])
	}
}

func TestHierarchicalNonSuffixedFallsBack(t *testing.T) {
	sink := &memSink{}
	checker := &fakeChecker{allow: map[string]bool{"conversa:ver": true}}
	m := NewMiddleware(checker, sink, &fakeOwners{}, zap.NewNop().Sugar())

	rr := httptest.NewRecorder()
	m.RequireHierarchicalPermission("conversa:ver", nil)(okHandler()).
		ServeHTTP(rr, authedRequest(http.MethodGet, "/api/conversations", auth.Claims{UserID: 7, Role: "atendente"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if checker.calls != 1 {
		t.Fatalf("resolver consulted %d times, want 1", checker.calls)
	}
}

// Agent scenario end to end: a channel-scoped atendente behind the real
// resolver may list conversations on a member channel but not elsewhere.
func TestAgentChannelScopeThroughMiddleware(t *testing.T) {
	store := &fakeStore{
		users: map[uint]*models.User{
			7: {ID: 7, Role: models.RoleAtendente, RoleID: roleID(3), IsActive: true,
				Channels: models.StringList{"whatsapp", "instagram"}},
		},
		grants: map[string]bool{"3:conversa:ver": true},
	}
	sink := &memSink{}
	m := NewMiddleware(newTestResolver(store), sink, nil, zap.NewNop().Sugar())

	router := chi.NewRouter()
	router.With(m.RequirePermission("conversa:ver", func(r *http.Request) Context {
		return Context{Channel: r.URL.Query().Get("channel")}
	})).Get("/api/conversations", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	claims := auth.Claims{UserID: 7, Role: models.RoleAtendente}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/api/conversations?channel=whatsapp", claims))
	if rr.Code != http.StatusOK {
		t.Fatalf("member channel: status = %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/api/conversations?channel=facebook", claims))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign channel: status = %d, want 403", rr.Code)
	}

	entries := sink.all()
	if len(entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(entries))
	}
	if entries[0].Channel != "facebook" || entries[0].Action != audit.ActionPermissionDenied {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
}

func TestApplyHierarchicalFilter(t *testing.T) {
	m := NewMiddleware(&fakeChecker{}, &memSink{}, nil, zap.NewNop().Sugar())

	var got Filter
	h := m.ApplyHierarchicalFilter()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FilterFromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), authedRequest(http.MethodGet, "/", auth.Claims{UserID: 7, Role: models.RoleAtendente}))
	if got.AssignedUserID == nil || *got.AssignedUserID != 7 {
		t.Fatalf("atendente filter = %+v, want assigned user 7", got)
	}

	got = Filter{}
	h.ServeHTTP(httptest.NewRecorder(), authedRequest(http.MethodGet, "/", auth.Claims{UserID: 8, Role: models.RoleGerente}))
	if got.AssignedUserID != nil {
		t.Fatalf("gerente filter = %+v, want unrestricted", got)
	}
}
