package auth

import "sort"

// Principal is the authenticated identity attached to a request, with roles
// and permissions resolved at verification time.
type Principal struct {
	User        User
	Roles       []string
	Permissions map[string]struct{}
}

// NewPrincipal constructs a principal from a resolved permission list.
func NewPrincipal(user User, roles []string, perms []string) Principal {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return Principal{User: user, Roles: roles, Permissions: set}
}

// HasPermission reports whether the principal holds the capability code.
func (p Principal) HasPermission(code string) bool {
	_, ok := p.Permissions[code]
	return ok
}

// HasAll reports whether the principal holds every code; an empty set is
// vacuously satisfied.
func (p Principal) HasAll(codes []string) bool {
	for _, code := range codes {
		if !p.HasPermission(code) {
			return false
		}
	}
	return true
}

// HasAny reports whether the principal holds at least one code; an empty set
// yields false.
func (p Principal) HasAny(codes []string) bool {
	for _, code := range codes {
		if p.HasPermission(code) {
			return true
		}
	}
	return false
}

// PermissionList returns the principal's permission codes as a slice, for
// serialization.
func (p Principal) PermissionList() []string {
	out := make([]string, 0, len(p.Permissions))
	for code := range p.Permissions {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
