package auth

import "time"

// User is an account record. The password hash and reset-token state are
// never serialized outward.
type User struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Type              string     `json:"type"`
	Language          string     `json:"language"`
	Theme             string     `json:"theme"`
	PasswordHash      string     `json:"-"`
	ResetToken        *string    `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Permission is a fine-grained capability, identified by its code
// ("resource:action").
type Permission struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Role groups permissions under a stable code.
type Role struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// NewUser carries the fields accepted when creating an account. Password is
// plaintext here; it is hashed before it reaches the store.
type NewUser struct {
	Name        string
	Email       string
	Type        string
	Password    string
	Language    string
	Theme       string
	Permissions []string
}

// UserUpdate is a partial update; nil fields are left untouched. Password is
// plaintext on the way in and replaced with its hash before storage.
// Permissions, when non-nil, replaces the full set of direct grants.
type UserUpdate struct {
	Name        *string
	Email       *string
	Type        *string
	Password    *string
	Language    *string
	Theme       *string
	Permissions *[]string
}

// Account type labels. Informational classification, not an authorization
// mechanism; authorization goes through roles and permissions only.
const (
	TypeUser  = "user"
	TypeAdmin = "admin"
)

const (
	DefaultLanguage = "en"
	DefaultTheme    = "light"
)

// SupportedLanguages mirrors the shipped locale catalogs.
var SupportedLanguages = []string{"en", "pt", "es"}

// SupportedThemes lists the accepted UI theme preferences.
var SupportedThemes = []string{"light", "dark"}
