package authz

import (
	"context"
	"encoding/json"

	"educhat/internal/metrics"
	"educhat/internal/models"

	"go.uber.org/zap"
)

// Context is the optional request scope a permission check is evaluated
// against.
type Context struct {
	Channel    string
	Macrosetor string
	ResourceID string
}

// RuleConditions is the structured shape of CustomRule.Conditions. Every
// field that is present must be satisfied by the request context.
type RuleConditions struct {
	Channels     []string `json:"channels,omitempty"`
	Macrosetores []string `json:"macrosetores,omitempty"`
}

// Resolver decides allow/deny for (user, permission, context). Resolution
// order: active user, admin bypass, role grant, custom rule, deny.
type Resolver struct {
	store Store
	cache *DecisionCache
	lg    *zap.SugaredLogger
}

func NewResolver(store Store, cache *DecisionCache, lg *zap.SugaredLogger) *Resolver {
	return &Resolver{store: store, cache: cache, lg: lg}
}

// HasPermission never returns an error: any lookup failure is logged and
// treated as deny, so the authorization path cannot crash a request.
func (r *Resolver) HasPermission(ctx context.Context, userID uint, permission string, c *Context) bool {
	if userID == 0 || permission == "" {
		return false
	}
	if r.cache != nil {
		if allowed, ok := r.cache.Get(ctx, userID, permission, c); ok {
			return allowed
		}
	}
	allowed := r.resolve(ctx, userID, permission, c)
	if r.cache != nil {
		r.cache.Set(ctx, userID, permission, c, allowed)
	}
	if allowed {
		metrics.AuthzDecisions.WithLabelValues("granted").Inc()
	} else {
		metrics.AuthzDecisions.WithLabelValues("denied").Inc()
	}
	return allowed
}

func (r *Resolver) resolve(ctx context.Context, userID uint, permission string, c *Context) bool {
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		r.fail(userID, permission, err)
		return false
	}
	if user == nil || !user.IsActive {
		return false
	}

	// The admin tag short-circuits everything, context scoping included.
	// This is deliberate policy, not a missing check.
	if user.Role == models.RoleAdmin {
		metrics.AdminBypasses.Inc()
		return true
	}

	if user.RoleID != nil {
		granted, err := r.store.RoleHasPermission(ctx, *user.RoleID, permission)
		if err != nil {
			r.fail(userID, permission, err)
			return false
		}
		if granted {
			// Scoping is open by default: an empty membership set imposes
			// no restriction, whatever context the caller supplies.
			if c != nil && c.Channel != "" && len(user.Channels) > 0 && !user.Channels.Contains(c.Channel) {
				return false
			}
			if c != nil && c.Macrosetor != "" && len(user.Macrosetores) > 0 && !user.Macrosetores.Contains(c.Macrosetor) {
				return false
			}
			return true
		}
	}

	rule, err := r.store.FindCustomRule(ctx, userID, permission)
	if err != nil {
		r.fail(userID, permission, err)
		return false
	}
	if rule == nil {
		return false
	}
	var cond RuleConditions
	if len(rule.Conditions) > 0 {
		if err := json.Unmarshal(rule.Conditions, &cond); err != nil {
			r.lg.Errorw("custom rule conditions unparsable",
				"user_id", userID, "permission", permission, "rule_id", rule.ID, "error", err)
			return false
		}
	}
	if len(cond.Channels) > 0 && c != nil && c.Channel != "" && !containsString(cond.Channels, c.Channel) {
		return false
	}
	if len(cond.Macrosetores) > 0 && c != nil && c.Macrosetor != "" && !containsString(cond.Macrosetores, c.Macrosetor) {
		return false
	}
	return true
}

func (r *Resolver) fail(userID uint, permission string, err error) {
	metrics.AuthzDecisions.WithLabelValues("error").Inc()
	r.lg.Errorw("permission lookup failed", "user_id", userID, "permission", permission, "error", err)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
