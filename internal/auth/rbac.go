package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RBACStore is the persistence contract for the role and permission edges.
// Implementations must keep the edge tables consistent under concurrent
// mutation: edge inserts are idempotent, and ReplaceDirectPermissions is
// all-or-nothing.
type RBACStore interface {
	RoleCodes(ctx context.Context, userID int64) ([]string, error)
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
	DirectPermissions(ctx context.Context, userID int64) ([]string, error)

	AssignRole(ctx context.Context, userID int64, roleCode string) error
	RevokeRole(ctx context.Context, userID int64, roleCode string) error
	AssignPermission(ctx context.Context, userID int64, code string) error
	RevokePermission(ctx context.Context, userID int64, code string) error
	ReplaceDirectPermissions(ctx context.Context, userID int64, codes []string) error

	ListRoles(ctx context.Context) ([]Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	EnsureCatalog(ctx context.Context, perms []Permission, roles []Role, rolePerms map[string][]string) error
}

// Resolver computes effective permissions and manages role and direct-grant
// assignments. Permissions are resolved live on every check so that a
// revocation takes effect on the next request without re-login; session
// tokens never carry a permission snapshot.
type Resolver struct {
	store RBACStore
}

func NewResolver(store RBACStore) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	return &Resolver{store: store}, nil
}

// EffectivePermissions returns the union of permissions reachable through the
// user's roles and those granted directly. A user with no roles and no grants
// yields an empty set, not an error.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return r.store.EffectivePermissions(ctx, userID)
}

// Roles returns the role codes assigned to the user. Absence of a user is not
// a fault on this read path; it just yields the empty set.
func (r *Resolver) Roles(ctx context.Context, userID int64) ([]string, error) {
	return r.store.RoleCodes(ctx, userID)
}

// DirectPermissions returns only the direct-grant edge, excluding role-derived
// permissions.
func (r *Resolver) DirectPermissions(ctx context.Context, userID int64) ([]string, error) {
	return r.store.DirectPermissions(ctx, userID)
}

func (r *Resolver) HasPermission(ctx context.Context, userID int64, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}
	perms, err := r.store.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == code {
			return true, nil
		}
	}
	return false, nil
}

// HasAll reports whether the user holds every code in the set. An empty set
// is vacuously satisfied.
func (r *Resolver) HasAll(ctx context.Context, userID int64, codes []string) (bool, error) {
	if len(codes) == 0 {
		return true, nil
	}
	set, err := r.permissionSet(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		if _, ok := set[code]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// HasAny reports whether the user holds at least one code in the set. An
// empty set yields false; "any of nothing" is not satisfiable, unlike HasAll.
func (r *Resolver) HasAny(ctx context.Context, userID int64, codes []string) (bool, error) {
	if len(codes) == 0 {
		return false, nil
	}
	set, err := r.permissionSet(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		if _, ok := set[code]; ok {
			return true, nil
		}
	}
	return false, nil
}

// AssignRole inserts the user-role edge. Assigning an already-held role is a
// no-op; an unknown role code fails with ErrRoleNotFound.
func (r *Resolver) AssignRole(ctx context.Context, userID int64, roleCode string) error {
	roleCode = strings.TrimSpace(roleCode)
	if roleCode == "" {
		return fmt.Errorf("%w: role code is required", ErrInvalidInput)
	}
	return r.store.AssignRole(ctx, userID, roleCode)
}

// RevokeRole deletes the edge if present. Revoking a role the user never held
// is a no-op as long as the role code exists in the catalog.
func (r *Resolver) RevokeRole(ctx context.Context, userID int64, roleCode string) error {
	roleCode = strings.TrimSpace(roleCode)
	if roleCode == "" {
		return fmt.Errorf("%w: role code is required", ErrInvalidInput)
	}
	return r.store.RevokeRole(ctx, userID, roleCode)
}

func (r *Resolver) AssignPermission(ctx context.Context, userID int64, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: permission code is required", ErrInvalidInput)
	}
	return r.store.AssignPermission(ctx, userID, code)
}

func (r *Resolver) RevokePermission(ctx context.Context, userID int64, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: permission code is required", ErrInvalidInput)
	}
	return r.store.RevokePermission(ctx, userID, code)
}

// SetDirectPermissions replaces the user's complete set of direct grants with
// the given codes. The replacement is atomic: if any code is unknown the
// prior grants survive untouched and the call fails with
// ErrPermissionNotFound.
func (r *Resolver) SetDirectPermissions(ctx context.Context, userID int64, codes []string) error {
	return r.store.ReplaceDirectPermissions(ctx, userID, dedupeCodes(codes))
}

func (r *Resolver) ListRoles(ctx context.Context) ([]Role, error) {
	return r.store.ListRoles(ctx)
}

func (r *Resolver) ListPermissions(ctx context.Context) ([]Permission, error) {
	return r.store.ListPermissions(ctx)
}

// EnsureCatalog seeds the permission and role catalogs idempotently.
func (r *Resolver) EnsureCatalog(ctx context.Context) error {
	return r.store.EnsureCatalog(ctx, SeedPermissions, SeedRoles, SeedRolePermissions)
}

func (r *Resolver) permissionSet(ctx context.Context, userID int64) (map[string]struct{}, error) {
	perms, err := r.store.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set, nil
}

func dedupeCodes(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
