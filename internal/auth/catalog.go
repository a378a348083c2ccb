package auth

// Known permission codes seeded at bootstrap. Anything assigned
// administratively is additionally validated against the live catalog by the
// store, so compile-time and runtime sets cannot drift apart silently.
const (
	PermUserCreate          = "user:create"
	PermUserRead            = "user:read"
	PermUserUpdate          = "user:update"
	PermUserDelete          = "user:delete"
	PermUserList            = "user:list"
	PermEmailBlockDuplicate = "email:block_duplicate"
	PermAdminAccess         = "admin:access"
)

// Seeded role codes.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// DefaultRole is assigned to every freshly created account.
const DefaultRole = RoleUser

// SeedPermissions is the bootstrap permission catalog.
var SeedPermissions = []Permission{
	{Code: PermUserCreate, Name: "Create User", Description: "Permission to create new users"},
	{Code: PermUserRead, Name: "Read User", Description: "Permission to read user information"},
	{Code: PermUserUpdate, Name: "Update User", Description: "Permission to update user information"},
	{Code: PermUserDelete, Name: "Delete User", Description: "Permission to delete users"},
	{Code: PermUserList, Name: "List Users", Description: "Permission to list all users"},
	{Code: PermEmailBlockDuplicate, Name: "Block Duplicate Email", Description: "Permission to block duplicate email registration"},
	{Code: PermAdminAccess, Name: "Admin Access", Description: "Full administrative access"},
}

// SeedRoles is the bootstrap role catalog.
var SeedRoles = []Role{
	{Code: RoleAdmin, Name: "Administrator", Description: "Full access to all features"},
	{Code: RoleManager, Name: "Manager", Description: "Management access with limited permissions"},
	{Code: RoleUser, Name: "User", Description: "Basic user access"},
}

// SeedRolePermissions maps role codes to the permission codes they carry at
// bootstrap. The admin role holds the entire catalog.
var SeedRolePermissions = map[string][]string{
	RoleAdmin: {
		PermUserCreate, PermUserRead, PermUserUpdate, PermUserDelete,
		PermUserList, PermEmailBlockDuplicate, PermAdminAccess,
	},
	RoleManager: {
		PermUserCreate, PermUserRead, PermUserUpdate, PermUserList,
		PermEmailBlockDuplicate,
	},
	RoleUser: {
		PermUserRead, PermUserList,
	},
}
