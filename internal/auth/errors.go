package auth

import "errors"

var (
	// ErrInvalidCredentials covers unknown email, missing password hash and a
	// failed password comparison alike; callers cannot tell the cases apart.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidToken covers bad signature, malformed structure and elapsed
	// expiry for session tokens, and absent-or-expired reset tokens.
	ErrInvalidToken = errors.New("auth: invalid or expired token")

	ErrNotAuthenticated   = errors.New("auth: not authenticated")
	ErrAccessDenied       = errors.New("auth: access denied")
	ErrRoleNotFound       = errors.New("auth: role not found")
	ErrPermissionNotFound = errors.New("auth: permission not found")
	ErrDuplicateEmail     = errors.New("auth: email already registered")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrUndeletableAccount = errors.New("auth: seed admin cannot be deleted")
	ErrInvalidInput       = errors.New("auth: invalid input")
)
