package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdminWildcard(t *testing.T) {
	for _, perm := range []string{
		PermInvoiceRead, PermInvoiceCreate, PermInvoiceUpdate,
		PermPaymentRead, PermPaymentCreate, PermPaymentUpdate,
		PermApprovalRead, PermApprovalApprove,
		PermUserRead, PermUserUpdate,
	} {
		require.True(t, HasPermission(RoleAdmin, perm), perm)
	}
}

func TestRolePermissionTable(t *testing.T) {
	cases := []struct {
		role    Role
		allowed []string
		denied  []string
	}{
		{
			role:    RoleFinanceOfficer,
			allowed: []string{PermUserUpdate, PermPaymentUpdate, PermApprovalApprove},
			denied:  nil,
		},
		{
			role:    RolePaymentRequestCreator,
			allowed: []string{PermInvoiceCreate, PermPaymentCreate, PermPaymentUpdate},
			denied:  []string{PermApprovalApprove, PermUserRead, PermUserUpdate},
		},
		{
			role:    RoleInvoiceProcessor,
			allowed: []string{PermInvoiceCreate, PermInvoiceUpdate, PermPaymentCreate},
			denied:  []string{PermPaymentUpdate, PermApprovalApprove, PermUserUpdate},
		},
		{
			role:    RoleApprover,
			allowed: []string{PermInvoiceRead, PermPaymentRead, PermApprovalRead, PermApprovalApprove},
			denied:  []string{PermInvoiceCreate, PermPaymentCreate, PermUserRead},
		},
	}
	for _, tc := range cases {
		for _, perm := range tc.allowed {
			require.True(t, HasPermission(tc.role, perm), "%s should hold %s", tc.role, perm)
		}
		for _, perm := range tc.denied {
			require.False(t, HasPermission(tc.role, perm), "%s should not hold %s", tc.role, perm)
		}
	}
}

func TestUnknownRoleHasNothing(t *testing.T) {
	require.False(t, HasPermission(Role("ghost"), PermInvoiceRead))
	require.False(t, HasPermission("", PermInvoiceRead))
}

func TestParseRole(t *testing.T) {
	for _, role := range Roles() {
		parsed, err := ParseRole(string(role))
		require.NoError(t, err)
		require.Equal(t, role, parsed)
	}
	_, err := ParseRole("superuser")
	require.Error(t, err)
}
