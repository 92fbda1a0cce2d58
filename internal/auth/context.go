package auth

import (
	"context"
)

type ctxKey string

const userKey ctxKey = "userClaims"

// Claims is the authenticated principal attached to the request context.
// Role is the coarse tag from the user record; JWTID ties the token to a
// session row.
type Claims struct {
	UserID uint
	Role   string
	JWTID  string
}

func (c Claims) Authenticated() bool {
	return c.UserID != 0
}

func (c Claims) IsAdmin() bool {
	return c.Role == "admin"
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, userKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(userKey).(Claims); ok {
		return v
	}
	return Claims{}
}

func UserID(ctx context.Context) uint {
	return FromContext(ctx).UserID
}
