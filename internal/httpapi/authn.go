package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"userhub.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/password-reset",
	"/v1/auth/password-reset/confirm",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, errKey := extractBearerToken(r.Header.Get(authHeader))
		if errKey != "" {
			a.writeError(w, r, http.StatusUnauthorized, errKey, nil)
			return
		}

		principal, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				a.writeError(w, r, http.StatusUnauthorized, "errors.invalid_or_expired_token", nil)
				return
			}
			a.writeError(w, r, http.StatusInternalServerError, "errors.internal_server_error", nil)
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission loads the principal and checks a single permission. The
// false return means the response has already been written.
func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, perm string) bool {
	principal, ok := a.principal(w, r)
	if !ok {
		return false
	}
	if !principal.HasPermission(perm) {
		a.denied(w, r, perm)
		return false
	}
	return true
}

// requireAll passes only when every permission is held. An empty list always
// passes.
func (a *API) requireAll(w http.ResponseWriter, r *http.Request, perms ...string) bool {
	principal, ok := a.principal(w, r)
	if !ok {
		return false
	}
	for _, perm := range perms {
		if !principal.HasPermission(perm) {
			a.denied(w, r, perm)
			return false
		}
	}
	return true
}

// requireAny passes when at least one permission is held. An empty list
// always denies.
func (a *API) requireAny(w http.ResponseWriter, r *http.Request, perms ...string) bool {
	principal, ok := a.principal(w, r)
	if !ok {
		return false
	}
	if principal.HasAny(perms) {
		return true
	}
	a.denied(w, r, strings.Join(perms, "|"))
	return false
}

func (a *API) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		a.guardFail(w, r, auth.ErrNotAuthenticated, "")
		return auth.Principal{}, false
	}
	return principal, true
}

func (a *API) denied(w http.ResponseWriter, r *http.Request, perm string) {
	a.guardFail(w, r, fmt.Errorf("%w: %s", auth.ErrAccessDenied, perm), perm)
}

func (a *API) guardFail(w http.ResponseWriter, r *http.Request, err error, perm string) {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		a.writeError(w, r, http.StatusUnauthorized, "guards.requires_authentication", nil)
	case errors.Is(err, auth.ErrAccessDenied):
		a.writeError(w, r, http.StatusForbidden, "permissions.insufficient_permissions", map[string]string{
			"permission": perm,
		})
	default:
		a.writeError(w, r, http.StatusInternalServerError, "errors.internal_server_error", nil)
	}
}

func extractBearerToken(header string) (token, errKey string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "errors.token_not_provided"
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", "errors.invalid_token_format"
	}
	token = strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", "errors.token_not_provided"
	}
	return token, ""
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
