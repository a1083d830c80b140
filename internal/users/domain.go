package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/payflow-fin/payflow/internal/rbac"
)

// User represents an account participating in the invoice workflow.
type User struct {
	ID            uuid.UUID
	Email         string
	Name          string
	Role          rbac.Role
	EmailVerified bool
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateUserInput for provisioning a user.
type CreateUserInput struct {
	Email string
	Name  string
	Role  rbac.Role
}

// UpdateUserInput for mutating a user. Nil fields are left untouched.
type UpdateUserInput struct {
	Name          *string
	Role          *rbac.Role
	EmailVerified *bool
	Active        *bool
}

// ListUsersRequest filters the user listing.
type ListUsersRequest struct {
	Role   rbac.Role
	Active *bool
	Search string
	Limit  int
	Offset int
}
