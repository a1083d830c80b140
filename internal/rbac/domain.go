package rbac

import (
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of roles a user can hold. Roles map to a fixed
// permission set; there is no dynamic grant mechanism.
type Role string

const (
	RoleInvoiceProcessor      Role = "invoice_processor"
	RolePaymentRequestCreator Role = "payment_request_creator"
	RoleApprover              Role = "approver"
	RoleFinanceOfficer        Role = "finance_officer"
	RoleAdmin                 Role = "admin"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{
		RoleInvoiceProcessor,
		RolePaymentRequestCreator,
		RoleApprover,
		RoleFinanceOfficer,
		RoleAdmin,
	}
}

// ParseRole validates a role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleInvoiceProcessor, RolePaymentRequestCreator, RoleApprover, RoleFinanceOfficer, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("rbac: unknown role %q", s)
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Actor describes the authenticated caller as supplied by the identity
// provider. The core trusts this without re-verifying credentials.
type Actor struct {
	ID   uuid.UUID
	Role Role
}
