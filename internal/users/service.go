package users

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/payflow-fin/payflow/internal/platform/httpx"
	"github.com/payflow-fin/payflow/internal/rbac"
)

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = httpx.NewError(httpx.ErrNotFound, "users: not found")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = httpx.NewError(httpx.ErrConflict, "users: email already registered")
	// ErrRoleChangeForbidden indicates a non-admin attempted a role change.
	ErrRoleChangeForbidden = httpx.NewError(httpx.ErrForbidden, "users: only admin may change a role")
	// ErrInvalidRole indicates an unknown role value.
	ErrInvalidRole = httpx.NewError(httpx.ErrValidation, "users: invalid role")
	// ErrInvalidInput indicates a structurally invalid request.
	ErrInvalidInput = httpx.NewError(httpx.ErrValidation, "users: invalid input")
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateUserInput) (User, error)
	Get(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, req ListUsersRequest) ([]User, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateUserInput) (User, error)
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Create provisions a user account.
func (s *Service) Create(ctx context.Context, input CreateUserInput) (User, error) {
	if strings.TrimSpace(input.Email) == "" || strings.TrimSpace(input.Name) == "" {
		return User{}, ErrInvalidInput
	}
	if !input.Role.Valid() {
		return User{}, ErrInvalidRole
	}
	user, err := s.repo.Create(ctx, input)
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user created", slog.String("id", user.ID.String()), slog.String("role", string(user.Role)))
	return user, nil
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.Get(ctx, id)
}

// GetByEmail fetches a user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// List returns users matching the filters.
func (s *Service) List(ctx context.Context, req ListUsersRequest) ([]User, error) {
	if req.Role != "" && !req.Role.Valid() {
		return nil, ErrInvalidRole
	}
	return s.repo.List(ctx, req)
}

// Update mutates a user. Role changes are restricted to admin actors;
// every other field is governed by the user.update permission at the
// route boundary.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateUserInput, actor rbac.Actor) (User, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return User{}, ErrInvalidRole
		}
		if *input.Role != current.Role && actor.Role != rbac.RoleAdmin {
			return User{}, ErrRoleChangeForbidden
		}
	}
	updated, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user updated",
		slog.String("id", id.String()),
		slog.String("actor", actor.ID.String()))
	return updated, nil
}

// Deactivate soft-deletes a user by clearing the active flag. Accounts
// are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID, actor rbac.Actor) (User, error) {
	inactive := false
	user, err := s.repo.Update(ctx, id, UpdateUserInput{Active: &inactive})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user deactivated",
		slog.String("id", id.String()),
		slog.String("actor", actor.ID.String()))
	return user, nil
}
