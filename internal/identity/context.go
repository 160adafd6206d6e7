package identity

import (
	"context"
	"strings"
)

type userContextKey struct{}

type contextUser struct {
	id         string
	systemRole string
}

// ContextWithUser attaches the authenticated user to the context.
func ContextWithUser(ctx context.Context, userID, systemRole string) context.Context {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userContextKey{}, contextUser{
		id:         userID,
		systemRole: strings.TrimSpace(systemRole),
	})
}

// UserIDFromContext extracts the authenticated user id.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	u, ok := ctx.Value(userContextKey{}).(contextUser)
	if !ok || u.id == "" {
		return "", false
	}
	return u.id, true
}

// SystemRoleFromContext extracts the system-tier role, if any.
func SystemRoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	u, _ := ctx.Value(userContextKey{}).(contextUser)
	return u.systemRole
}
