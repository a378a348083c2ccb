package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"userhub.org/internal/obs"
)

const (
	defaultTokenTTL      = 24 * time.Hour
	defaultResetTokenTTL = time.Hour
	defaultIssuer        = "userhub"
	defaultAdminEmail    = "admin@userhub.org"

	resetTokenBytes = 32
)

// UserStore is the persistence contract for account records and their
// reset-token state. Password hashes arrive pre-hashed; the store never sees
// plaintext.
type UserStore interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id int64, upd UserUpdate) (User, error)
	DeleteUser(ctx context.Context, id int64) error

	SetResetToken(ctx context.Context, userID int64, token string, expires time.Time) error
	// ConsumeResetToken updates the password hash and clears the token state
	// as one atomic unit, matching only a token whose expiry is strictly in
	// the future. Returns ErrInvalidToken when nothing matched.
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (User, error)
}

// Mailer delivers account mail. Dispatch is fire-and-forget from the
// service's perspective; a delivery failure never fails the triggering
// request.
type Mailer interface {
	SendPasswordReset(ctx context.Context, user User, token string) error
	SendWelcome(ctx context.Context, user User) error
}

// Claims are the session token claims. The token carries identity and locale
// only, never a permission snapshot, so revocations are honored on the next
// request.
type Claims struct {
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	AccountType string `json:"type"`
	Language    string `json:"language"`
	jwt.RegisteredClaims
}

// Service is the credential and session core: login, token issue/verify, the
// password-reset lifecycle and account CRUD.
type Service struct {
	users UserStore
	rbac  *Resolver

	secret     []byte
	issuer     string
	tokenTTL   time.Duration
	resetTTL   time.Duration
	adminEmail string
	adminSeed  string
	mailer     Mailer
	now        func() time.Time
}

// Option configures Service behavior.
type Option func(*Service) error

// WithTokenTTL overrides the session token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
		return nil
	}
}

// WithResetTokenTTL overrides the password-reset token lifetime.
func WithResetTokenTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.resetTTL = ttl
		}
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) error {
		if iss := strings.TrimSpace(issuer); iss != "" {
			s.issuer = iss
		}
		return nil
	}
}

// WithMailer attaches an outbound mailer for reset and welcome mail.
func WithMailer(m Mailer) Option {
	return func(s *Service) error {
		s.mailer = m
		return nil
	}
}

// WithSeedAdmin sets the protected bootstrap admin identity. The password is
// used only by EnsureSeed when the account does not exist yet; when empty,
// EnsureSeed skips account creation and only the deletion guard applies.
func WithSeedAdmin(email, password string) Option {
	return func(s *Service) error {
		if e := strings.TrimSpace(email); e != "" {
			s.adminEmail = e
		}
		s.adminSeed = password
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the Service. The signing secret is mandatory.
func NewService(users UserStore, rbac *Resolver, secret string, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if rbac == nil {
		return nil, errors.New("rbac resolver is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth secret is required")
	}
	svc := &Service{
		users:      users,
		rbac:       rbac,
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		tokenTTL:   defaultTokenTTL,
		resetTTL:   defaultResetTokenTTL,
		adminEmail: defaultAdminEmail,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// LoginResult is what a successful login returns: the session token and the
// principal with freshly resolved permissions.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Principal Principal
}

// Login authenticates credentials and mints a session token. Unknown email,
// an account with no password set and a failed comparison all collapse to
// ErrInvalidCredentials so the response does not reveal account existence.
// Only the error kind is unified: the unknown-email path skips the bcrypt
// comparison, so a timing side channel remains, as in the reference behavior.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return LoginResult{}, ErrInvalidCredentials
	}
	principal, err := s.principal(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}
	token, expires, err := s.signToken(user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: expires, Principal: principal}, nil
}

// Authenticate verifies a session token and returns the principal with
// permissions re-resolved live; claims in the token are trusted for identity
// only. There is no revocation list: a compromised token stays valid until
// its natural expiry.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	user, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	return s.principal(ctx, user)
}

// RequestPasswordReset issues a fresh reset token for the account, replacing
// any prior unconsumed one, and dispatches the reset mail best-effort. The
// caller is expected to answer identically whether or not the account exists.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrUserNotFound
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	token, err := newResetToken()
	if err != nil {
		return "", err
	}
	expires := s.now().Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, token, expires); err != nil {
		return "", err
	}
	s.dispatchMail("password_reset", user, func(ctx context.Context) error {
		return s.mailer.SendPasswordReset(ctx, user, token)
	})
	return token, nil
}

// ResetPassword consumes a reset token and sets the new password. Token
// not-found and token-but-expired are indistinguishable to the caller; both
// fail with ErrInvalidToken. Password change and token clearing happen as one
// unit in the store.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, ErrInvalidToken
	}
	if strings.TrimSpace(newPassword) == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return User{}, err
	}
	return s.users.ConsumeResetToken(ctx, token, hash, s.now())
}

// CreateUser registers an account: hashes the password, stores the row,
// assigns the default role and applies any requested direct grants. A
// default-role failure is surfaced, not swallowed. The welcome mail is
// best-effort.
func (s *Service) CreateUser(ctx context.Context, nu NewUser) (User, error) {
	nu.Name = strings.TrimSpace(nu.Name)
	if nu.Name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	nu.Email = strings.TrimSpace(nu.Email)
	if nu.Email == "" || !strings.Contains(nu.Email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(nu.Password) == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	accountType, err := normalizeType(nu.Type)
	if err != nil {
		return User{}, err
	}
	language, err := normalizeLanguage(nu.Language)
	if err != nil {
		return User{}, err
	}
	theme, err := normalizeTheme(nu.Theme)
	if err != nil {
		return User{}, err
	}
	hash, err := HashPassword(nu.Password)
	if err != nil {
		return User{}, err
	}

	user, err := s.users.CreateUser(ctx, User{
		Name:         nu.Name,
		Email:        nu.Email,
		Type:         accountType,
		Language:     language,
		Theme:        theme,
		PasswordHash: hash,
	})
	if err != nil {
		return User{}, err
	}
	if err := s.rbac.AssignRole(ctx, user.ID, DefaultRole); err != nil {
		return User{}, fmt.Errorf("assign default role: %w", err)
	}
	if len(nu.Permissions) > 0 {
		if err := s.rbac.SetDirectPermissions(ctx, user.ID, nu.Permissions); err != nil {
			return User{}, err
		}
	}
	s.dispatchMail("welcome", user, func(ctx context.Context) error {
		return s.mailer.SendWelcome(ctx, user)
	})
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, ErrUserNotFound
	}
	return s.users.GetUserByEmail(ctx, email)
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.users.ListUsers(ctx)
}

// UpdateUser applies a partial update. When the account type changes the
// default role is re-affirmed, and a failure to do so is surfaced to the
// caller rather than silently ignored. A non-nil Permissions field replaces
// the full direct-grant set.
func (s *Service) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (User, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if email == "" || !strings.Contains(email, "@") {
			return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Type != nil {
		accountType, err := normalizeType(*upd.Type)
		if err != nil {
			return User{}, err
		}
		upd.Type = &accountType
	}
	if upd.Language != nil {
		language, err := normalizeLanguage(*upd.Language)
		if err != nil {
			return User{}, err
		}
		upd.Language = &language
	}
	if upd.Theme != nil {
		theme, err := normalizeTheme(*upd.Theme)
		if err != nil {
			return User{}, err
		}
		upd.Theme = &theme
	}
	if upd.Password != nil {
		if strings.TrimSpace(*upd.Password) == "" {
			return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := HashPassword(*upd.Password)
		if err != nil {
			return User{}, err
		}
		upd.Password = &hash
	}

	user, err := s.users.UpdateUser(ctx, id, upd)
	if err != nil {
		return User{}, err
	}
	if upd.Type != nil {
		if err := s.ensureDefaultRole(ctx, user.ID); err != nil {
			return User{}, fmt.Errorf("re-affirm default role: %w", err)
		}
	}
	if upd.Permissions != nil {
		if err := s.rbac.SetDirectPermissions(ctx, user.ID, *upd.Permissions); err != nil {
			return User{}, err
		}
	}
	return user, nil
}

// DeleteUser removes an account. The seed admin identity is undeletable
// regardless of the caller's permissions.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if user.Email == s.adminEmail {
		return ErrUndeletableAccount
	}
	return s.users.DeleteUser(ctx, id)
}

// EnsureSeed makes sure the permission/role catalogs exist and, when a seed
// password is configured, creates the bootstrap admin account with the admin
// role. Idempotent; safe to run on every start.
func (s *Service) EnsureSeed(ctx context.Context) error {
	if err := s.rbac.EnsureCatalog(ctx); err != nil {
		return fmt.Errorf("ensure catalog: %w", err)
	}
	if s.adminSeed == "" {
		return nil
	}
	_, err := s.users.GetUserByEmail(ctx, s.adminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	hash, err := HashPassword(s.adminSeed)
	if err != nil {
		return err
	}
	admin, err := s.users.CreateUser(ctx, User{
		Name:         "admin",
		Email:        s.adminEmail,
		Type:         TypeAdmin,
		Language:     DefaultLanguage,
		Theme:        DefaultTheme,
		PasswordHash: hash,
	})
	if err != nil {
		// Lost a race against another instance seeding the same account.
		if errors.Is(err, ErrDuplicateEmail) {
			return nil
		}
		return err
	}
	return s.rbac.AssignRole(ctx, admin.ID, RoleAdmin)
}

func (s *Service) principal(ctx context.Context, user User) (Principal, error) {
	roles, err := s.rbac.Roles(ctx, user.ID)
	if err != nil {
		return Principal{}, err
	}
	perms, err := s.rbac.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return Principal{}, err
	}
	return NewPrincipal(user, roles, perms), nil
}

func (s *Service) ensureDefaultRole(ctx context.Context, userID int64) error {
	roles, err := s.rbac.Roles(ctx, userID)
	if err != nil {
		return err
	}
	for _, r := range roles {
		if r == DefaultRole {
			return nil
		}
	}
	return s.rbac.AssignRole(ctx, userID, DefaultRole)
}

func (s *Service) signToken(user User) (string, time.Time, error) {
	now := s.now().UTC()
	expires := now.Add(s.tokenTTL)
	claims := Claims{
		UserID:      user.ID,
		Email:       user.Email,
		AccountType: user.Type,
		Language:    user.Language,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

func (s *Service) parseToken(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != s.issuer || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// dispatchMail delivers account mail in the background. Failures are logged
// and never reach the triggering request.
func (s *Service) dispatchMail(kind string, user User, send func(context.Context) error) {
	if s.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			obs.LogEvent("error", "mail_delivery_failed", map[string]any{
				"kind":    kind,
				"user_id": user.ID,
				"error":   err.Error(),
			})
		}
	}()
}

func newResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func normalizeType(value string) (string, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return TypeUser, nil
	}
	if value != TypeUser && value != TypeAdmin {
		return "", fmt.Errorf("%w: unsupported account type %s", ErrInvalidInput, value)
	}
	return value, nil
}

func normalizeLanguage(value string) (string, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return DefaultLanguage, nil
	}
	for _, lang := range SupportedLanguages {
		if value == lang {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported language %s", ErrInvalidInput, value)
}

func normalizeTheme(value string) (string, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return DefaultTheme, nil
	}
	for _, theme := range SupportedThemes {
		if value == theme {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported theme %s", ErrInvalidInput, value)
}
