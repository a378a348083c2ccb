package httpapi

import (
	"net/http"

	"userhub.org/internal/auth"
)

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requirePermission(w, r, auth.PermAdminAccess) {
		return
	}
	roles, err := a.rbac.ListRoles(r.Context())
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	if roles == nil {
		roles = []auth.Role{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requirePermission(w, r, auth.PermAdminAccess) {
		return
	}
	perms, err := a.rbac.ListPermissions(r.Context())
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	if perms == nil {
		perms = []auth.Permission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}
