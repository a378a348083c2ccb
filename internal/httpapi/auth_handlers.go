package httpapi

import (
	"errors"
	"net/http"
	"time"

	"userhub.org/internal/auth"
	"userhub.org/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        auth.User `json:"user"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "errors.invalid_request", nil)
		return
	}
	res, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			obs.ObserveLogin("failure")
			a.writeError(w, r, http.StatusUnauthorized, "errors.invalid_credentials", nil)
			return
		}
		a.writeError(w, r, http.StatusInternalServerError, "errors.internal_server_error", nil)
		return
	}
	obs.ObserveLogin("success")
	writeJSON(w, http.StatusOK, loginResponse{
		Token:       res.Token,
		ExpiresAt:   res.ExpiresAt,
		User:        res.Principal.User,
		Roles:       res.Principal.Roles,
		Permissions: res.Principal.PermissionList(),
	})
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// handlePasswordResetRequest answers identically whether or not the account
// exists, so the endpoint cannot be used to probe for registered emails.
func (a *API) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "errors.invalid_request", nil)
		return
	}
	if _, err := a.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		if !errors.Is(err, auth.ErrUserNotFound) {
			a.writeError(w, r, http.StatusInternalServerError, "errors.internal_server_error", nil)
			return
		}
	}
	obs.ObservePasswordReset("requested")
	a.writeMessage(w, r, http.StatusOK, "auth.password_reset.email_sent")
}

type passwordResetConfirm struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (a *API) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req passwordResetConfirm
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "errors.invalid_request", nil)
		return
	}
	if _, err := a.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			obs.ObservePasswordReset("rejected")
			a.writeError(w, r, http.StatusBadRequest, "auth.password_reset.invalid_token", nil)
		case errors.Is(err, auth.ErrInvalidInput):
			a.writeError(w, r, http.StatusBadRequest, "errors.invalid_request", nil)
		default:
			a.writeError(w, r, http.StatusInternalServerError, "errors.internal_server_error", nil)
		}
		return
	}
	obs.ObservePasswordReset("completed")
	a.writeMessage(w, r, http.StatusOK, "auth.password_reset.success")
}
