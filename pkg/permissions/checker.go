// Package permissions resolves what a role may do and how per-location
// assignment flags map to access levels.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "locations.*")
//   - "resource.action" - Specific action (e.g., "inventory.counts.approve")
package permissions

import (
	"strings"
)

// Level is the access level requested against a location.
type Level string

const (
	LevelRead   Level = "read"
	LevelWrite  Level = "write"
	LevelManage Level = "manage"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelRead, LevelWrite, LevelManage:
		return true
	}
	return false
}

// PermAllLocations grants every location of the organization without an
// explicit assignment. Roles holding it are "elevated".
const PermAllLocations = "locations.all"

// Flags are the independent read/write/manage bits of one location assignment.
type Flags struct {
	CanRead   bool `db:"can_read" json:"can_read"`
	CanWrite  bool `db:"can_write" json:"can_write"`
	CanManage bool `db:"can_manage" json:"can_manage"`
}

// Allows reports whether the flags grant the level. Flags do not imply one
// another: a write-only assignment does not grant manage.
func (f Flags) Allows(level Level) bool {
	switch level {
	case LevelRead:
		return f.CanRead
	case LevelWrite:
		return f.CanWrite
	case LevelManage:
		return f.CanManage
	}
	return false
}

// Any reports whether at least one flag is set.
func (f Flags) Any() bool {
	return f.CanRead || f.CanWrite || f.CanManage
}

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "locations.*" matches "locations.all", "locations.read", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range userPerms {
		if p == "*" || p == required {
			return true
		}
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// MergePermissions merges multiple permission sets, removing duplicates.
func MergePermissions(sets ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, set := range sets {
		for _, p := range set {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}

	return result
}

// DefaultRolePermissions is the built-in role table. Role names are matched
// case-insensitively.
var DefaultRolePermissions = map[string][]string{
	"owner":   {"*"},
	"admin":   {"locations.*", "inventory.*"},
	"manager": {"inventory.*"},
	"staff":   {"inventory.read", "inventory.write"},
	"system":  {"*"},
}

// RoleTable maps role names to permission sets.
type RoleTable struct {
	roles map[string][]string
}

// NewRoleTable builds a table from DefaultRolePermissions. Every role in
// elevatedRoles additionally receives PermAllLocations.
func NewRoleTable(elevatedRoles []string) *RoleTable {
	roles := make(map[string][]string, len(DefaultRolePermissions)+len(elevatedRoles))
	for name, perms := range DefaultRolePermissions {
		roles[name] = perms
	}
	for _, name := range elevatedRoles {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		roles[key] = MergePermissions(roles[key], []string{PermAllLocations})
	}
	return &RoleTable{roles: roles}
}

// Permissions returns the permission set of a role; unknown roles get none.
func (t *RoleTable) Permissions(role string) []string {
	return t.roles[strings.ToLower(role)]
}

// IsElevated reports whether the role sees every location in its organization.
func (t *RoleTable) IsElevated(role string) bool {
	return HasPermission(t.Permissions(role), PermAllLocations)
}
