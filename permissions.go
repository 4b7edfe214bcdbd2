package auth

// Canonical permission identifiers. Root access levels get all of them at
// creation time; custom levels pick a subset.
const (
	PermUsersRead         = "users:read"
	PermUsersCreate       = "users:create"
	PermUsersUpdate       = "users:update"
	PermUsersDelete       = "users:delete"
	PermAccessLevelsRead  = "access-levels:read"
	PermAccessLevelsWrite = "access-levels:write"
	PermSessionsRevoke    = "sessions:revoke"
	PermOrgUpdate         = "organization:update"
	PermOrgBilling        = "organization:billing"
)

// StaticPermissions adapts a fixed identifier list to PermissionProvider.
type StaticPermissions []string

func (p StaticPermissions) Permissions() []string {
	return append([]string(nil), p...)
}

var _ PermissionProvider = StaticPermissions(nil)

// DefaultPermissions is the full permission set of the system.
var DefaultPermissions = StaticPermissions{
	PermUsersRead,
	PermUsersCreate,
	PermUsersUpdate,
	PermUsersDelete,
	PermAccessLevelsRead,
	PermAccessLevelsWrite,
	PermSessionsRevoke,
	PermOrgUpdate,
	PermOrgBilling,
}
