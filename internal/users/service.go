// Package users is the admin surface over the user directory: creation,
// approver assignment, and permission grants.
package users

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/auth"
	"github.com/cando-yeh/reimbursement-sub001/internal/models"
	"github.com/cando-yeh/reimbursement-sub001/internal/repository"
	"github.com/cando-yeh/reimbursement-sub001/pkg/utils"
)

// ErrValidationFailed is returned for malformed user payloads
var ErrValidationFailed = errors.New("user validation failed")

// Service is the user administration service
type Service struct {
	users  *repository.UserRepository
	policy *auth.Policy
	logger *zap.Logger
}

// NewService creates a new user administration service
func NewService(users *repository.UserRepository, policy *auth.Policy, logger *zap.Logger) *Service {
	return &Service{
		users:  users,
		policy: policy,
		logger: logger,
	}
}

func (s *Service) requireAdmin(actorID int64) (*models.User, error) {
	actor, err := s.users.GetByID(actorID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanManageUsers(actor) {
		return nil, fmt.Errorf("%w: user administration requires the user_management permission", auth.ErrForbidden)
	}
	return actor, nil
}

// Create registers a user, reusing the existing record when the email is
// already known (identity-provider sign-ins race with admin creation).
func (s *Service) Create(ctx context.Context, actorID int64, name, email string) (*models.User, error) {
	if _, err := s.requireAdmin(actorID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidationFailed)
	}
	if err := utils.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	user, err := s.users.UpsertByEmail(email, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User registered", zap.Int64("user_id", user.ID), zap.String("email", email))
	return user, nil
}

// SetApprover designates whose approval the user's claims require.
func (s *Service) SetApprover(ctx context.Context, actorID, userID, approverID int64) error {
	if _, err := s.requireAdmin(actorID); err != nil {
		return err
	}
	if userID == approverID {
		return fmt.Errorf("%w: a user cannot be their own approver", ErrValidationFailed)
	}
	return s.users.SetApprover(userID, approverID)
}

// UpdatePermissions replaces a user's permission set.
func (s *Service) UpdatePermissions(ctx context.Context, actorID, userID int64, permissions []string) error {
	if _, err := s.requireAdmin(actorID); err != nil {
		return err
	}
	for _, perm := range permissions {
		switch perm {
		case models.PermGeneral, models.PermFinanceAudit, models.PermUserManagement:
		default:
			return fmt.Errorf("%w: unknown permission %q", ErrValidationFailed, perm)
		}
	}
	return s.users.UpdatePermissions(userID, permissions)
}

// Delete removes a user; the repository refuses while claims or other users
// still reference them.
func (s *Service) Delete(ctx context.Context, actorID, userID int64) error {
	if _, err := s.requireAdmin(actorID); err != nil {
		return err
	}
	return s.users.Delete(userID)
}

// Get retrieves a single user
func (s *Service) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.users.GetByID(id)
}

// List retrieves all users
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	return s.users.List()
}
