package rbac

// Permission tags checked by services and route middleware.
const (
	PermInvoiceRead   = "invoice.read"
	PermInvoiceCreate = "invoice.create"
	PermInvoiceUpdate = "invoice.update"

	PermPaymentRead   = "payment.read"
	PermPaymentCreate = "payment.create"
	PermPaymentUpdate = "payment.update"

	PermApprovalRead    = "approval.read"
	PermApprovalApprove = "approval.approve"

	PermUserRead   = "user.read"
	PermUserUpdate = "user.update"
)

// wildcard grants every permission.
const wildcard = "*"

// rolePermissions is the static role to permission table. Changing it
// requires a redeploy.
var rolePermissions = map[Role][]string{
	RoleAdmin: {wildcard},
	RoleFinanceOfficer: {
		PermUserRead,
		PermUserUpdate,
		PermInvoiceRead,
		PermInvoiceCreate,
		PermInvoiceUpdate,
		PermPaymentRead,
		PermPaymentCreate,
		PermPaymentUpdate,
		PermApprovalRead,
		PermApprovalApprove,
	},
	RolePaymentRequestCreator: {
		PermInvoiceRead,
		PermInvoiceCreate,
		PermInvoiceUpdate,
		PermPaymentRead,
		PermPaymentCreate,
		PermPaymentUpdate,
	},
	RoleInvoiceProcessor: {
		PermInvoiceRead,
		PermInvoiceCreate,
		PermInvoiceUpdate,
		PermPaymentRead,
		PermPaymentCreate,
	},
	RoleApprover: {
		PermInvoiceRead,
		PermPaymentRead,
		PermApprovalRead,
		PermApprovalApprove,
	},
}

// HasPermission reports whether the role's permission set contains the
// action or the wildcard.
func HasPermission(role Role, action string) bool {
	for _, p := range rolePermissions[role] {
		if p == wildcard || p == action {
			return true
		}
	}
	return false
}

// Permissions returns a copy of the permission set for a role.
func Permissions(role Role) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
