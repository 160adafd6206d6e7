package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"planhub.org/internal/authz"
	"planhub.org/internal/identity"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := identity.ParseAndValidate(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := identity.ContextWithUser(r.Context(), claims.Subject, claims.SystemRole)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireManage gates the administrative mutation surface: the actor needs
// manage_roles (or a system role that implies it). The gate demands a strict
// allow; a conditional grant never opens it, there is no resource here to
// evaluate the condition against.
func (a *API) requireManage(w http.ResponseWriter, r *http.Request) bool {
	actorID, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	}
	d, err := a.engine.Resolve(r.Context(), actorID, authz.PermManageRoles, nil)
	if err != nil {
		if errors.Is(err, authz.ErrUnknownUser) {
			writeError(w, r, http.StatusForbidden, "forbidden")
			return false
		}
		writeError(w, r, http.StatusInternalServerError, "authorization error")
		return false
	}
	if !d.Allowed() {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func actorFrom(ctx context.Context) string {
	id, _ := identity.UserIDFromContext(ctx)
	return id
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
