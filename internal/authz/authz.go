// Package authz implements the fixed role hierarchy and permission table.
// Everything here is a pure function of roles and ids, with no stored state.
package authz

import "authgrid/api/internal/models"

type Permission string

const (
	PermManageAdmins         Permission = "manage_admins"
	PermManageUsers          Permission = "manage_users"
	PermViewAuditLogs        Permission = "view_audit_logs"
	PermManageSystemSettings Permission = "manage_system_settings"
	PermViewAnalytics        Permission = "view_analytics"
	PermManageRoles          Permission = "manage_roles"
	PermViewProfile          Permission = "view_profile"
	PermUpdateProfile        Permission = "update_profile"
)

// rolePermissions is the total mapping from role to permission set. Admin
// tiers are identical siblings: no tier outranks another.
var rolePermissions = map[models.Role][]Permission{
	models.RoleSuperAdmin: {
		PermManageAdmins,
		PermManageUsers,
		PermViewAuditLogs,
		PermManageSystemSettings,
		PermViewAnalytics,
		PermManageRoles,
	},
	models.RoleAdmin1: {PermManageUsers, PermViewAuditLogs, PermViewAnalytics},
	models.RoleAdmin2: {PermManageUsers, PermViewAuditLogs, PermViewAnalytics},
	models.RoleAdmin3: {PermManageUsers, PermViewAuditLogs, PermViewAnalytics},
	models.RoleUser:   {PermViewProfile, PermUpdateProfile},
}

func HasPermission(role models.Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Permissions returns a copy of the permission set for a role.
func Permissions(role models.Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// CanManage reports whether actor may mutate target. Superadmins manage
// everyone but other superadmins (themself excepted), admin tiers manage only
// plain users, and plain users manage only themself.
func CanManage(actor, target models.User) bool {
	switch {
	case actor.Role == models.RoleSuperAdmin:
		return target.Role != models.RoleSuperAdmin || target.ID == actor.ID
	case actor.Role.Admin():
		return target.Role == models.RoleUser
	default:
		return target.ID == actor.ID
	}
}

// CanView reports whether actor may read target's record.
func CanView(actor, target models.User) bool {
	switch {
	case actor.Role == models.RoleSuperAdmin:
		return true
	case actor.Role.Admin():
		return target.Role == models.RoleUser || target.ID == actor.ID
	default:
		return target.ID == actor.ID
	}
}

// CanAssignRole reports whether actor may grant targetRole to someone.
// Granting any admin tier or superadmin requires a superadmin actor; granting
// the plain user role requires at least an admin tier.
func CanAssignRole(actor models.User, targetRole models.Role) bool {
	switch targetRole {
	case models.RoleSuperAdmin, models.RoleAdmin1, models.RoleAdmin2, models.RoleAdmin3:
		return actor.Role == models.RoleSuperAdmin
	case models.RoleUser:
		return actor.Role.Admin()
	}
	return false
}
