package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"userhub.org/internal/auth"
)

type createUserRequest struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Type        string   `json:"type"`
	Language    string   `json:"language"`
	Theme       string   `json:"theme"`
	Permissions []string `json:"permissions"`
}

type updateUserRequest struct {
	Name        *string   `json:"name"`
	Email       *string   `json:"email"`
	Password    *string   `json:"password"`
	Type        *string   `json:"type"`
	Language    *string   `json:"language"`
	Theme       *string   `json:"theme"`
	Permissions *[]string `json:"permissions"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.requirePermission(w, r, auth.PermUserList) {
			return
		}
		users, err := a.auth.ListUsers(r.Context())
		if err != nil {
			a.handleDomainError(w, r, err)
			return
		}
		if users == nil {
			users = []auth.User{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	case http.MethodPost:
		if !a.requirePermission(w, r, auth.PermUserCreate) {
			return
		}
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			a.writeError(w, r, http.StatusBadRequest, "errors.invalid_request", nil)
			return
		}
		user, err := a.auth.CreateUser(r.Context(), auth.NewUser{
			Name:        req.Name,
			Email:       req.Email,
			Password:    req.Password,
			Type:        req.Type,
			Language:    req.Language,
			Theme:       req.Theme,
			Permissions: req.Permissions,
		})
		if err != nil {
			a.handleDomainError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/users/%d", user.ID))
		writeJSON(w, http.StatusCreated, user)
	default:
		a.methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleUserScoped dispatches /v1/users/{id} and its subresources.
func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		a.writeError(w, r, http.StatusNotFound, "errors.user_not_found", nil)
		return
	}
	parts := strings.Split(path, "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		a.writeError(w, r, http.StatusNotFound, "errors.user_not_found", nil)
		return
	}
	switch {
	case len(parts) == 1:
		a.handleUser(w, r, id)
	case len(parts) == 2 && parts[1] == "roles":
		a.handleUserRoles(w, r, id)
	case len(parts) == 3 && parts[1] == "roles":
		a.handleUserRole(w, r, id, parts[2])
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleUserPermissions(w, r, id)
	default:
		a.writeError(w, r, http.StatusNotFound, "errors.user_not_found", nil)
	}
}

func (a *API) handleUser(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		if !a.requirePermission(w, r, auth.PermUserRead) {
			return
		}
		user, err := a.auth.GetUser(r.Context(), id)
		if err != nil {
			a.handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		if !a.requirePermission(w, r, auth.PermUserUpdate) {
			return
		}
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			a.writeError(w, r, http.StatusBadRequest, "errors.invalid_request", nil)
			return
		}
		user, err := a.auth.UpdateUser(r.Context(), id, auth.UserUpdate{
			Name:        req.Name,
			Email:       req.Email,
			Password:    req.Password,
			Type:        req.Type,
			Language:    req.Language,
			Theme:       req.Theme,
			Permissions: req.Permissions,
		})
		if err != nil {
			a.handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if !a.requirePermission(w, r, auth.PermUserDelete) {
			return
		}
		if err := a.auth.DeleteUser(r.Context(), id); err != nil {
			a.handleDomainError(w, r, err)
			return
		}
		a.writeMessage(w, r, http.StatusOK, "users.deleted")
	default:
		a.methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		if !a.requireAny(w, r, auth.PermAdminAccess, auth.PermUserRead) {
			return
		}
		roles, err := a.rbac.Roles(r.Context(), id)
		if err != nil {
			a.handleDomainError(w, r, err)
			return
		}
		if roles == nil {
			roles = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	case http.MethodPost:
		if !a.requirePermission(w, r, auth.PermAdminAccess) {
			return
		}
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			a.writeError(w, r, http.StatusBadRequest, "errors.invalid_request", nil)
			return
		}
		if err := a.rbac.AssignRole(r.Context(), id, req.Role); err != nil {
			a.handleDomainError(w, r, err)
			return
		}
		roles, err := a.rbac.Roles(r.Context(), id)
		if err != nil {
			a.handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"roles": roles})
	default:
		a.methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserRole(w http.ResponseWriter, r *http.Request, id int64, code string) {
	if r.Method != http.MethodDelete {
		a.methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.requirePermission(w, r, auth.PermAdminAccess) {
		return
	}
	if err := a.rbac.RevokeRole(r.Context(), id, code); err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	roles, err := a.rbac.Roles(r.Context(), id)
	if err != nil {
		a.handleDomainError(w, r, err)
		return
	}
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

type setPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (a *API) handleUserPermissions(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		if !a.requireAny(w, r, auth.PermAdminAccess, auth.PermUserRead) {
			return
		}
		direct, err := a.rbac.DirectPermissions(r.Context(), id)
		if err != nil {
			a.handleDomainError(w, r, err)
			return
		}
		effective, err := a.rbac.EffectivePermissions(r.Context(), id)
		if err != nil {
			a.handleDomainError(w, r, err)
			return
		}
		if direct == nil {
			direct = []string{}
		}
		if effective == nil {
			effective = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"direct":    direct,
			"effective": effective,
		})
	case http.MethodPut:
		if !a.requireAll(w, r, auth.PermUserUpdate, auth.PermAdminAccess) {
			return
		}
		var req setPermissionsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			a.writeError(w, r, http.StatusBadRequest, "errors.invalid_request", nil)
			return
		}
		if req.Permissions == nil {
			a.writeError(w, r, http.StatusBadRequest, "errors.invalid_request", nil)
			return
		}
		if err := a.rbac.SetDirectPermissions(r.Context(), id, req.Permissions); err != nil {
			a.handleDomainError(w, r, err)
			return
		}
		direct, err := a.rbac.DirectPermissions(r.Context(), id)
		if err != nil {
			a.handleDomainError(w, r, err)
			return
		}
		if direct == nil {
			direct = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"direct": direct})
	default:
		a.methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}
