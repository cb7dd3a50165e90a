package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"

	"finitefield.org/bloomcare-web/internal/domain"
)

const superAdmin = "admin@bloomcare.com"

func TestForUser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		user *domain.User
		can  []Capability
		not  []Capability
	}{
		{
			name: "anonymous",
			not:  []Capability{CapReviewsWrite, CapCatalogManage, CapStaffManage},
		},
		{
			name: "customer",
			user: &domain.User{ID: "u1", Email: "ana@example.com", Role: "cliente"},
			can:  []Capability{CapReviewsWrite},
			not:  []Capability{CapCatalogManage, CapStaffManage},
		},
		{
			name: "backend admin",
			user: &domain.User{ID: "a1", Email: "staff@example.com", Role: "admin"},
			can:  []Capability{CapReviewsWrite, CapCatalogManage, CapStaffManage},
		},
		{
			name: "super admin by email",
			user: &domain.User{Email: "Admin@BloomCare.com"},
			can:  []Capability{CapCatalogManage, CapStaffManage},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			set := For(tc.user, superAdmin)
			for _, c := range tc.can {
				require.True(t, set.Can(c), c)
			}
			for _, c := range tc.not {
				require.False(t, set.Can(c), c)
			}
		})
	}
}

func TestRolesOf(t *testing.T) {
	t.Parallel()

	require.Nil(t, RolesOf(nil, superAdmin))
	require.Equal(t, []Role{RoleCustomer}, RolesOf(&domain.User{Email: "ana@example.com"}, superAdmin))
	require.Equal(t, []Role{RoleCustomer, RoleAdmin}, RolesOf(&domain.User{Email: "x@y.z", Role: "admin"}, ""))
}

func TestGrantIgnoresUnknownRoles(t *testing.T) {
	t.Parallel()

	require.Empty(t, Grant(Role("auditor")))
	require.False(t, Set(nil).Can(CapReviewsWrite))
	require.Len(t, Grant(RoleAdmin, RoleCustomer), 3)
}
