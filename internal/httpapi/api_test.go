package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"userhub.org/internal/auth"
	"userhub.org/internal/i18n"
	"userhub.org/internal/obs"
)

// In-memory stores with the same semantics as the SQL layer, enough to drive
// the handlers end to end.

type memUserStore struct {
	nextID int64
	users  map[int64]auth.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{nextID: 1, users: map[int64]auth.User{}}
}

func (s *memUserStore) CreateUser(_ context.Context, u auth.User) (auth.User, error) {
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return auth.User{}, auth.ErrDuplicateEmail
		}
	}
	u.ID = s.nextID
	s.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = u
	return u, nil
}

func (s *memUserStore) GetUser(_ context.Context, id int64) (auth.User, error) {
	u, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (s *memUserStore) GetUserByEmail(_ context.Context, email string) (auth.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

func (s *memUserStore) ListUsers(_ context.Context) ([]auth.User, error) {
	out := make([]auth.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memUserStore) UpdateUser(_ context.Context, id int64, upd auth.UserUpdate) (auth.User, error) {
	u, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Type != nil {
		u.Type = *upd.Type
	}
	if upd.Language != nil {
		u.Language = *upd.Language
	}
	if upd.Theme != nil {
		u.Theme = *upd.Theme
	}
	if upd.Password != nil {
		u.PasswordHash = *upd.Password
	}
	s.users[id] = u
	return u, nil
}

func (s *memUserStore) DeleteUser(_ context.Context, id int64) error {
	if _, ok := s.users[id]; !ok {
		return auth.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memUserStore) SetResetToken(_ context.Context, userID int64, token string, expires time.Time) error {
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.ResetToken = &token
	u.ResetTokenExpires = &expires
	s.users[userID] = u
	return nil
}

func (s *memUserStore) ConsumeResetToken(_ context.Context, token, passwordHash string, now time.Time) (auth.User, error) {
	for id, u := range s.users {
		if u.ResetToken == nil || *u.ResetToken != token {
			continue
		}
		if u.ResetTokenExpires == nil || !u.ResetTokenExpires.After(now) {
			continue
		}
		u.PasswordHash = passwordHash
		u.ResetToken = nil
		u.ResetTokenExpires = nil
		s.users[id] = u
		return u, nil
	}
	return auth.User{}, auth.ErrInvalidToken
}

type memRBACStore struct {
	perms     map[string]auth.Permission
	roles     map[string]auth.Role
	rolePerms map[string][]string
	userRoles map[int64]map[string]struct{}
	userPerms map[int64]map[string]struct{}
}

func newMemRBACStore() *memRBACStore {
	return &memRBACStore{
		perms:     map[string]auth.Permission{},
		roles:     map[string]auth.Role{},
		rolePerms: map[string][]string{},
		userRoles: map[int64]map[string]struct{}{},
		userPerms: map[int64]map[string]struct{}{},
	}
}

func (s *memRBACStore) RoleCodes(_ context.Context, userID int64) ([]string, error) {
	var out []string
	for code := range s.userRoles[userID] {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memRBACStore) EffectivePermissions(_ context.Context, userID int64) ([]string, error) {
	set := map[string]struct{}{}
	for role := range s.userRoles[userID] {
		for _, code := range s.rolePerms[role] {
			set[code] = struct{}{}
		}
	}
	for code := range s.userPerms[userID] {
		set[code] = struct{}{}
	}
	var out []string
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memRBACStore) DirectPermissions(_ context.Context, userID int64) ([]string, error) {
	var out []string
	for code := range s.userPerms[userID] {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memRBACStore) AssignRole(_ context.Context, userID int64, roleCode string) error {
	if _, ok := s.roles[roleCode]; !ok {
		return auth.ErrRoleNotFound
	}
	if s.userRoles[userID] == nil {
		s.userRoles[userID] = map[string]struct{}{}
	}
	s.userRoles[userID][roleCode] = struct{}{}
	return nil
}

func (s *memRBACStore) RevokeRole(_ context.Context, userID int64, roleCode string) error {
	if _, ok := s.roles[roleCode]; !ok {
		return auth.ErrRoleNotFound
	}
	delete(s.userRoles[userID], roleCode)
	return nil
}

func (s *memRBACStore) AssignPermission(_ context.Context, userID int64, code string) error {
	if _, ok := s.perms[code]; !ok {
		return auth.ErrPermissionNotFound
	}
	if s.userPerms[userID] == nil {
		s.userPerms[userID] = map[string]struct{}{}
	}
	s.userPerms[userID][code] = struct{}{}
	return nil
}

func (s *memRBACStore) RevokePermission(_ context.Context, userID int64, code string) error {
	if _, ok := s.perms[code]; !ok {
		return auth.ErrPermissionNotFound
	}
	delete(s.userPerms[userID], code)
	return nil
}

func (s *memRBACStore) ReplaceDirectPermissions(_ context.Context, userID int64, codes []string) error {
	next := map[string]struct{}{}
	for _, code := range codes {
		if _, ok := s.perms[code]; !ok {
			return fmt.Errorf("%w: %s", auth.ErrPermissionNotFound, code)
		}
		next[code] = struct{}{}
	}
	s.userPerms[userID] = next
	return nil
}

func (s *memRBACStore) ListRoles(_ context.Context) ([]auth.Role, error) {
	var out []auth.Role
	for _, r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *memRBACStore) ListPermissions(_ context.Context) ([]auth.Permission, error) {
	var out []auth.Permission
	for _, p := range s.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *memRBACStore) EnsureCatalog(_ context.Context, perms []auth.Permission, roles []auth.Role, rolePerms map[string][]string) error {
	for _, p := range perms {
		s.perms[p.Code] = p
	}
	for _, r := range roles {
		s.roles[r.Code] = r
	}
	for role, codes := range rolePerms {
		s.rolePerms[role] = append([]string(nil), codes...)
	}
	return nil
}

type testAPI struct {
	handler http.Handler
	svc     *auth.Service
	users   *memUserStore
	rbac    *memRBACStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	users := newMemUserStore()
	rbacStore := newMemRBACStore()
	resolver, err := auth.NewResolver(rbacStore)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	svc, err := auth.NewService(users, resolver, "test-secret",
		auth.WithSeedAdmin("root@example.com", "bootstrap"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.EnsureSeed(context.Background()); err != nil {
		t.Fatalf("EnsureSeed: %v", err)
	}
	tr, err := i18n.New()
	if err != nil {
		t.Fatalf("i18n.New: %v", err)
	}
	api := New(svc, resolver, tr, ReadyProbe{}, "test")
	return &testAPI{handler: api.Handler(), svc: svc, users: users, rbac: rbacStore}
}

func (ta *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	return rr
}

func (ta *testAPI) login(t *testing.T, email, password string) string {
	t.Helper()
	rr := ta.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: status %d, body %s", email, rr.Code, rr.Body.String())
	}
	var res loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return res.Token
}

func (ta *testAPI) createUser(t *testing.T, adminToken, email string) auth.User {
	t.Helper()
	rr := ta.do(t, http.MethodPost, "/v1/users", adminToken, map[string]any{
		"name": "Member", "email": email, "password": "opensesame",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create user: status %d, body %s", rr.Code, rr.Body.String())
	}
	var u auth.User
	if err := json.Unmarshal(rr.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return u
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	ta := newTestAPI(t)
	rr := ta.do(t, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestLoginAndAuthenticatedRequest(t *testing.T) {
	ta := newTestAPI(t)
	token := ta.login(t, "root@example.com", "bootstrap")

	rr := ta.do(t, http.MethodGet, "/v1/users", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list users: status %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	ta := newTestAPI(t)
	rr := ta.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "root@example.com", "password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "Invalid credentials" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}

func TestLoginErrorIsLocalized(t *testing.T) {
	ta := newTestAPI(t)
	rr := ta.do(t, http.MethodPost, "/v1/auth/login?lang=pt", "", map[string]string{
		"email": "root@example.com", "password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "Credenciais inválidas" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}

func TestMissingTokenRejected(t *testing.T) {
	ta := newTestAPI(t)
	rr := ta.do(t, http.MethodGet, "/v1/users", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "Authentication token not provided" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}

func TestUnauthenticatedResponseIsLoggedWithRequestID(t *testing.T) {
	ta := newTestAPI(t)

	logger := obs.Logger()
	origWriter := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(origWriter)

	rr := ta.do(t, http.MethodGet, "/v1/users", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rr.Code)
	}
	body := decodeBody(t, rr)
	rid, _ := body["request_id"].(string)
	if rid == "" {
		t.Fatal("401 body should carry a request_id")
	}
	if got := rr.Header().Get("X-Request-Id"); got != rid {
		t.Fatalf("header request id %q, body has %q", got, rid)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry %q: %v", buf.String(), err)
	}
	if entry["request_id"] != rid {
		t.Fatalf("log request_id %v, want %q", entry["request_id"], rid)
	}
	if entry["status"] != float64(http.StatusUnauthorized) {
		t.Fatalf("log status %v, want 401", entry["status"])
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	ta := newTestAPI(t)
	rr := ta.do(t, http.MethodGet, "/v1/users", "not-a-token", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "Invalid or expired token" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}

func TestPermissionDenied(t *testing.T) {
	ta := newTestAPI(t)
	adminToken := ta.login(t, "root@example.com", "bootstrap")
	ta.createUser(t, adminToken, "member@example.com")
	memberToken := ta.login(t, "member@example.com", "opensesame")

	// default role can list but not create
	rr := ta.do(t, http.MethodGet, "/v1/users", memberToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("member list: status %d", rr.Code)
	}
	rr = ta.do(t, http.MethodPost, "/v1/users", memberToken, map[string]any{
		"name": "X", "email": "x@example.com", "password": "x",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("member create: status %d, want 403", rr.Code)
	}
	body := decodeBody(t, rr)
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, auth.PermUserCreate) {
		t.Fatalf("error should name the missing permission: %v", msg)
	}
}

func TestStoredLanguagePreferenceLocalizesErrors(t *testing.T) {
	ta := newTestAPI(t)
	adminToken := ta.login(t, "root@example.com", "bootstrap")

	rr := ta.do(t, http.MethodPost, "/v1/users", adminToken, map[string]any{
		"name": "Marta", "email": "marta@example.com", "password": "opensesame",
		"language": "pt",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create user: status %d, body %s", rr.Code, rr.Body.String())
	}
	memberToken := ta.login(t, "marta@example.com", "opensesame")

	// no lang query, no Accept-Language: the account preference decides
	rr = ta.do(t, http.MethodDelete, "/v1/users/1", memberToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("member delete: status %d, want 403", rr.Code)
	}
	want := "Permissão necessária ausente: " + auth.PermUserDelete
	if body := decodeBody(t, rr); body["error"] != want {
		t.Fatalf("error %v, want %q", body["error"], want)
	}

	// the account preference also outranks an explicit lang parameter
	rr = ta.do(t, http.MethodDelete, "/v1/users/1?lang=es", memberToken, nil)
	if body := decodeBody(t, rr); body["error"] != want {
		t.Fatalf("error %v, want %q", body["error"], want)
	}
}

func TestCreateUserDuplicateEmailConflict(t *testing.T) {
	ta := newTestAPI(t)
	adminToken := ta.login(t, "root@example.com", "bootstrap")
	ta.createUser(t, adminToken, "member@example.com")

	rr := ta.do(t, http.MethodPost, "/v1/users", adminToken, map[string]any{
		"name": "Member", "email": "member@example.com", "password": "opensesame",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rr.Code)
	}
}

func TestGetUpdateDeleteUser(t *testing.T) {
	ta := newTestAPI(t)
	adminToken := ta.login(t, "root@example.com", "bootstrap")
	u := ta.createUser(t, adminToken, "member@example.com")

	rr := ta.do(t, http.MethodGet, fmt.Sprintf("/v1/users/%d", u.ID), adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: status %d", rr.Code)
	}

	rr = ta.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%d", u.ID), adminToken, map[string]any{
		"name": "Renamed", "theme": "dark",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rr.Code, rr.Body.String())
	}
	var updated auth.User
	if err := json.Unmarshal(rr.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if updated.Name != "Renamed" || updated.Theme != "dark" {
		t.Fatalf("update not applied: %+v", updated)
	}

	rr = ta.do(t, http.MethodDelete, fmt.Sprintf("/v1/users/%d", u.ID), adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rr.Code)
	}
	rr = ta.do(t, http.MethodGet, fmt.Sprintf("/v1/users/%d", u.ID), adminToken, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d, want 404", rr.Code)
	}
}

func TestDeleteSeedAdminForbidden(t *testing.T) {
	ta := newTestAPI(t)
	adminToken := ta.login(t, "root@example.com", "bootstrap")
	admin, err := ta.svc.GetUserByEmail(context.Background(), "root@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	rr := ta.do(t, http.MethodDelete, fmt.Sprintf("/v1/users/%d", admin.ID), adminToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "The administrator account cannot be deleted" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}

func TestAssignAndRevokeRole(t *testing.T) {
	ta := newTestAPI(t)
	adminToken := ta.login(t, "root@example.com", "bootstrap")
	u := ta.createUser(t, adminToken, "member@example.com")

	rr := ta.do(t, http.MethodPost, fmt.Sprintf("/v1/users/%d/roles", u.ID), adminToken, map[string]string{
		"role": "manager",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("assign: status %d, body %s", rr.Code, rr.Body.String())
	}

	rr = ta.do(t, http.MethodGet, fmt.Sprintf("/v1/users/%d/roles", u.ID), adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get roles: status %d", rr.Code)
	}
	body := decodeBody(t, rr)
	roles := fmt.Sprintf("%v", body["roles"])
	if !strings.Contains(roles, "manager") || !strings.Contains(roles, "user") {
		t.Fatalf("unexpected roles: %v", roles)
	}

	rr = ta.do(t, http.MethodDelete, fmt.Sprintf("/v1/users/%d/roles/manager", u.ID), adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("revoke: status %d", rr.Code)
	}

	rr = ta.do(t, http.MethodPost, fmt.Sprintf("/v1/users/%d/roles", u.ID), adminToken, map[string]string{
		"role": "superuser",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown role: status %d, want 404", rr.Code)
	}
}

func TestReplaceDirectPermissions(t *testing.T) {
	ta := newTestAPI(t)
	adminToken := ta.login(t, "root@example.com", "bootstrap")
	u := ta.createUser(t, adminToken, "member@example.com")

	rr := ta.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%d/permissions", u.ID), adminToken, map[string]any{
		"permissions": []string{auth.PermUserDelete},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("replace: status %d, body %s", rr.Code, rr.Body.String())
	}

	rr = ta.do(t, http.MethodGet, fmt.Sprintf("/v1/users/%d/permissions", u.ID), adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get permissions: status %d", rr.Code)
	}
	body := decodeBody(t, rr)
	direct := fmt.Sprintf("%v", body["direct"])
	if !strings.Contains(direct, auth.PermUserDelete) {
		t.Fatalf("direct grants missing %s: %v", auth.PermUserDelete, direct)
	}
	effective := fmt.Sprintf("%v", body["effective"])
	if !strings.Contains(effective, auth.PermUserRead) {
		t.Fatalf("effective should include role-derived %s: %v", auth.PermUserRead, effective)
	}

	rr = ta.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%d/permissions", u.ID), adminToken, map[string]any{
		"permissions": []string{"user:teleport"},
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown code: status %d, want 404", rr.Code)
	}
}

func TestListRolesAndPermissionsRequireAdmin(t *testing.T) {
	ta := newTestAPI(t)
	adminToken := ta.login(t, "root@example.com", "bootstrap")
	ta.createUser(t, adminToken, "member@example.com")
	memberToken := ta.login(t, "member@example.com", "opensesame")

	rr := ta.do(t, http.MethodGet, "/v1/roles", memberToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("member roles: status %d, want 403", rr.Code)
	}
	rr = ta.do(t, http.MethodGet, "/v1/roles", adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin roles: status %d", rr.Code)
	}
	rr = ta.do(t, http.MethodGet, "/v1/permissions", adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin permissions: status %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if fmt.Sprintf("%v", body["permissions"]) == "[]" {
		t.Fatalf("expected seeded permissions")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	ta := newTestAPI(t)
	adminToken := ta.login(t, "root@example.com", "bootstrap")
	u := ta.createUser(t, adminToken, "member@example.com")

	// request never reveals whether the account exists
	rr := ta.do(t, http.MethodPost, "/v1/auth/password-reset", "", map[string]string{
		"email": "ghost@example.com",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("unknown email: status %d, want 200", rr.Code)
	}

	rr = ta.do(t, http.MethodPost, "/v1/auth/password-reset", "", map[string]string{
		"email": "member@example.com",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("request: status %d", rr.Code)
	}
	stored, err := ta.svc.GetUser(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if stored.ResetToken == nil {
		t.Fatalf("expected a stored reset token")
	}

	rr = ta.do(t, http.MethodPost, "/v1/auth/password-reset/confirm", "", map[string]string{
		"token": *stored.ResetToken, "password": "newpassword",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm: status %d, body %s", rr.Code, rr.Body.String())
	}
	ta.login(t, "member@example.com", "newpassword")

	rr = ta.do(t, http.MethodPost, "/v1/auth/password-reset/confirm", "", map[string]string{
		"token": *stored.ResetToken, "password": "again",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("reused token: status %d, want 400", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ta := newTestAPI(t)
	rr := ta.do(t, http.MethodDelete, "/v1/auth/login", "", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d, want 405", rr.Code)
	}
	if rr.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("unexpected Allow header: %q", rr.Header().Get("Allow"))
	}
}
