package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RoleVendor, RoleOrderManager, RoleStockManager, RoleAdmin} {
		require.True(t, role.Valid(), string(role))
	}
	require.False(t, Role("superuser").Valid())
	require.False(t, Role("").Valid())
}

func TestIdentityCapabilities(t *testing.T) {
	cases := []struct {
		role          Role
		orderManager  bool
		stockManager  bool
		admin, vendor bool
	}{
		{RoleVendor, false, false, false, true},
		{RoleOrderManager, true, false, false, false},
		{RoleStockManager, false, true, false, false},
		{RoleAdmin, true, true, true, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			id := Identity{UserID: 1, Role: tc.role}
			require.Equal(t, tc.orderManager, id.IsOrderManager())
			require.Equal(t, tc.stockManager, id.IsStockManager())
			require.Equal(t, tc.admin, id.IsAdmin())
			require.Equal(t, tc.vendor, id.IsVendor())
		})
	}
}
