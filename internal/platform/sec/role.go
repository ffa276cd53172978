// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import "fmt"

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Unrestricted task and user management
	RoleAdmin UserRole = "ADMIN"

	// Can create, update, delete and assign any task
	RoleManager UserRole = "MANAGER"

	// Default role for registered users; may only move their own tasks along
	RoleMember UserRole = "MEMBER"
)

// Roles lists every known role, most privileged first.
var Roles = []UserRole{RoleAdmin, RoleManager, RoleMember}

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
// Unknown roles never meet any target.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() > 0 && r.level() >= target.level()
}

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	return r.level() > 0
}

// ParseRole converts a raw string into a [UserRole].
func ParseRole(raw string) (UserRole, error) {
	role := UserRole(raw)
	if !role.Valid() {
		return "", fmt.Errorf("sec: unknown role %q", raw)
	}
	return role, nil
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {

	// Linear scale (10-30) allows for future intermediate roles
	switch r {
	case RoleAdmin:
		return 30
	case RoleManager:
		return 20
	case RoleMember:
		return 10
	default:
		return 0
	}
}
