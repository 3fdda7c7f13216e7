package domain

// PermissionRootKey authorizes any permission key and any scope.
const PermissionRootKey = "root"

// Permission defines a named capability.
type Permission struct {
	ID          string
	Key         string
	Description *string
}

// PermissionGrant attaches a permission to a role or directly to a user,
// optionally narrowed to a single scope. A nil ScopeID matches any
// requested scope.
type PermissionGrant struct {
	Permission Permission
	ScopeID    *string
}

// Allows reports whether the grant authorizes the requested key and scope.
func (g PermissionGrant) Allows(permissionKey string, scopeID *string) bool {
	if g.Permission.Key == PermissionRootKey {
		return true
	}
	if g.Permission.Key != permissionKey {
		return false
	}
	if g.ScopeID == nil {
		return true
	}
	return scopeID != nil && *g.ScopeID == *scopeID
}

// Role defines a labelled set of permission grants.
type Role struct {
	ID     string
	Label  string
	Grants []PermissionGrant
}
