package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"userhub.org/internal/auth"
	"userhub.org/internal/i18n"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// writeError sends a localized error payload keyed by message ID.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, code int, key string, params map[string]string) {
	payload := map[string]any{
		"error": a.translate(r, key, params),
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// writeMessage sends a localized success payload keyed by message ID.
func (a *API) writeMessage(w http.ResponseWriter, r *http.Request, code int, key string) {
	writeJSON(w, code, map[string]any{
		"message": a.translate(r, key, nil),
	})
}

func (a *API) translate(r *http.Request, key string, params map[string]string) string {
	if a.tr == nil {
		return key
	}
	return a.tr.Translate(a.requestLanguage(r), key, params)
}

// requestLanguage picks the response language. An authenticated account's
// stored preference wins over the lang query parameter and Accept-Language.
func (a *API) requestLanguage(r *http.Request) string {
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok && i18n.Supported(principal.User.Language) {
		return principal.User.Language
	}
	return i18n.FromRequest(r)
}

func (a *API) methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	a.writeError(w, r, http.StatusMethodNotAllowed, "errors.invalid_request", nil)
}

// handleDomainError maps service errors to HTTP status and message keys.
func (a *API) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		a.writeError(w, r, http.StatusBadRequest, "errors.invalid_request", nil)
	case errors.Is(err, auth.ErrDuplicateEmail):
		a.writeError(w, r, http.StatusConflict, "errors.email_already_registered", nil)
	case errors.Is(err, auth.ErrUserNotFound):
		a.writeError(w, r, http.StatusNotFound, "errors.user_not_found", nil)
	case errors.Is(err, auth.ErrRoleNotFound):
		a.writeError(w, r, http.StatusNotFound, "errors.role_not_found", nil)
	case errors.Is(err, auth.ErrPermissionNotFound):
		a.writeError(w, r, http.StatusNotFound, "errors.permission_not_found", nil)
	case errors.Is(err, auth.ErrUndeletableAccount):
		a.writeError(w, r, http.StatusForbidden, "errors.cannot_delete_admin", nil)
	default:
		a.writeError(w, r, http.StatusInternalServerError, "errors.internal_server_error", nil)
	}
}
