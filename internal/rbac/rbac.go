// Package rbac gates storefront features on the signed-in projection. It only shapes what the
// pages offer; the backend authorizes every call.
package rbac

import "finitefield.org/bloomcare-web/internal/domain"

// Role is an account tier as reported by the backend.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "cliente"
)

// Capability names a gated feature; templates check it with .Can.
type Capability string

const (
	CapCatalogManage Capability = "catalog.manage"
	CapStaffManage   Capability = "org.staff"
	CapReviewsWrite  Capability = "reviews.write"
)

var grants = map[Role][]Capability{
	RoleCustomer: {CapReviewsWrite},
	RoleAdmin:    {CapReviewsWrite, CapCatalogManage, CapStaffManage},
}

// Set is the capabilities held by one device. The zero value grants nothing.
type Set map[Capability]bool

// Can reports whether c is granted.
func (s Set) Can(c Capability) bool { return s[c] }

// RolesOf lists the roles of a signed-in projection: every user is a customer, and the
// backend admin role or the super-admin email adds admin.
func RolesOf(u *domain.User, superAdminEmail string) []Role {
	if u == nil {
		return nil
	}
	if u.IsAdmin(superAdminEmail) {
		return []Role{RoleCustomer, RoleAdmin}
	}
	return []Role{RoleCustomer}
}

// Grant collects the capabilities of roles. Unknown roles grant nothing.
func Grant(roles ...Role) Set {
	set := Set{}
	for _, role := range roles {
		for _, c := range grants[role] {
			set[c] = true
		}
	}
	return set
}

// For is Grant(RolesOf(u, superAdminEmail)...).
func For(u *domain.User, superAdminEmail string) Set {
	return Grant(RolesOf(u, superAdminEmail)...)
}
