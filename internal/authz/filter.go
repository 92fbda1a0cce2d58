package authz

import (
	"context"
	"net/http"

	"educhat/internal/auth"
	"educhat/internal/models"
)

type filterKey struct{}

// Filter scopes downstream list queries. A nil AssignedUserID means no
// restriction (admins and managers see everything).
type Filter struct {
	AssignedUserID *uint
}

func WithFilter(ctx context.Context, f Filter) context.Context {
	return context.WithValue(ctx, filterKey{}, f)
}

func FilterFromContext(ctx context.Context) Filter {
	if v, ok := ctx.Value(filterKey{}).(Filter); ok {
		return v
	}
	return Filter{}
}

// ApplyHierarchicalFilter narrows data visibility for agent users: their
// listings are restricted to records assigned to them. Other roles pass
// through unfiltered.
func (m *Middleware) ApplyHierarchicalFilter() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.FromContext(r.Context())
			if claims.Authenticated() && claims.Role == models.RoleAtendente {
				uid := claims.UserID
				r = r.WithContext(WithFilter(r.Context(), Filter{AssignedUserID: &uid}))
			}
			next.ServeHTTP(w, r)
		})
	}
}
