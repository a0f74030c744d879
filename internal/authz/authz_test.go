package authz

import (
	"testing"

	"authgrid/api/internal/models"
)

func user(id string, role models.Role) models.User {
	return models.User{ID: id, Role: role}
}

func TestPermissionTable(t *testing.T) {
	cases := []struct {
		role models.Role
		perm Permission
		want bool
	}{
		{models.RoleSuperAdmin, PermManageAdmins, true},
		{models.RoleSuperAdmin, PermManageRoles, true},
		{models.RoleSuperAdmin, PermManageSystemSettings, true},
		{models.RoleAdmin1, PermManageUsers, true},
		{models.RoleAdmin1, PermManageAdmins, false},
		{models.RoleAdmin2, PermViewAuditLogs, true},
		{models.RoleAdmin3, PermViewAnalytics, true},
		{models.RoleAdmin3, PermManageRoles, false},
		{models.RoleUser, PermViewProfile, true},
		{models.RoleUser, PermUpdateProfile, true},
		{models.RoleUser, PermManageUsers, false},
	}

	for _, tc := range cases {
		if got := HasPermission(tc.role, tc.perm); got != tc.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestEveryRoleHasPermissions(t *testing.T) {
	for _, role := range models.Roles() {
		if len(Permissions(role)) == 0 {
			t.Errorf("role %s has empty permission set", role)
		}
	}
}

func TestCanManage(t *testing.T) {
	super := user("sa", models.RoleSuperAdmin)
	otherSuper := user("sa2", models.RoleSuperAdmin)
	admin := user("a1", models.RoleAdmin1)
	otherAdmin := user("a2", models.RoleAdmin2)
	plain := user("u1", models.RoleUser)
	otherPlain := user("u2", models.RoleUser)

	cases := []struct {
		name          string
		actor, target models.User
		want          bool
	}{
		{"superadmin manages admin", super, admin, true},
		{"superadmin manages plain user", super, plain, true},
		{"superadmin cannot manage other superadmin", super, otherSuper, false},
		{"superadmin manages self", super, super, true},
		{"admin manages plain user", admin, plain, true},
		{"admin cannot manage sibling tier", admin, otherAdmin, false},
		{"admin cannot manage superadmin", admin, super, false},
		{"admin cannot manage self via admin rule", admin, admin, false},
		{"plain user manages self", plain, plain, true},
		{"plain user cannot manage others", plain, otherPlain, false},
	}

	for _, tc := range cases {
		if got := CanManage(tc.actor, tc.target); got != tc.want {
			t.Errorf("%s: CanManage = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCanView(t *testing.T) {
	super := user("sa", models.RoleSuperAdmin)
	admin := user("a1", models.RoleAdmin1)
	otherAdmin := user("a2", models.RoleAdmin2)
	plain := user("u1", models.RoleUser)
	otherPlain := user("u2", models.RoleUser)

	cases := []struct {
		name          string
		actor, target models.User
		want          bool
	}{
		{"superadmin views anyone", super, otherAdmin, true},
		{"admin views plain user", admin, plain, true},
		{"admin views self", admin, admin, true},
		{"admin cannot view sibling tier", admin, otherAdmin, false},
		{"plain user views self", plain, plain, true},
		{"plain user cannot view others", plain, otherPlain, false},
	}

	for _, tc := range cases {
		if got := CanView(tc.actor, tc.target); got != tc.want {
			t.Errorf("%s: CanView = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCanAssignRole(t *testing.T) {
	super := user("sa", models.RoleSuperAdmin)
	admin := user("a1", models.RoleAdmin1)
	plain := user("u1", models.RoleUser)

	cases := []struct {
		name   string
		actor  models.User
		target models.Role
		want   bool
	}{
		{"admin1 cannot grant admin2", admin, models.RoleAdmin2, false},
		{"superadmin grants admin2", super, models.RoleAdmin2, true},
		{"admin1 grants user", admin, models.RoleUser, true},
		{"superadmin grants superadmin", super, models.RoleSuperAdmin, true},
		{"admin cannot grant superadmin", admin, models.RoleSuperAdmin, false},
		{"plain user grants nothing", plain, models.RoleUser, false},
		{"unknown role grants nothing", super, models.Role("root"), false},
	}

	for _, tc := range cases {
		if got := CanAssignRole(tc.actor, tc.target); got != tc.want {
			t.Errorf("%s: CanAssignRole = %v, want %v", tc.name, got, tc.want)
		}
	}
}
