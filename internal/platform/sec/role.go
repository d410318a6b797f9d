// Copyright (c) 2026 Stokria. All rights reserved.

package sec

// # Membership Roles

// Role represents the authorization level a user holds within one company.
//
// A user may hold different roles in different companies; the role is always
// scoped to the tenant embedded in the access token.
type Role string

const (
	// Full control over the company, including destructive operations
	RoleOwner Role = "owner"

	// Company administration, short of ownership transfer
	RoleAdmin Role = "admin"

	// Sales counter access: quotes, sales, invoices
	RoleSeller Role = "seller"

	// Stock management: products, purchases, suppliers
	RoleInventory Role = "inventory"

	// Default read-mostly role for staff accounts
	RoleEmployee Role = "employee"
)

// # Parsing & Membership Checks

// ParseRole maps a raw string onto the closed role enum.
// Unknown values yield ok=false; callers must treat that as a deny.
func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleOwner, RoleAdmin, RoleSeller, RoleInventory, RoleEmployee:
		return Role(value), true
	default:
		return "", false
	}
}

// In reports whether the role is one of the allowed set.
func (r Role) In(allowed ...Role) bool {
	for _, candidate := range allowed {
		if r == candidate {
			return true
		}
	}
	return false
}

// String returns the wire representation of the role.
func (r Role) String() string { return string(r) }
