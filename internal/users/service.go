package users

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/station2100/station/internal/audit"
	"github.com/station2100/station/internal/rbac"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (User, error)
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	audit  rbac.AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, recorder rbac.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: recorder, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// SetActive activates or deactivates a user. Deactivation is the only way
// accounts are retired; an inactive user is denied every permission.
func (s *Service) SetActive(ctx context.Context, actorID, id uuid.UUID, active bool) (User, error) {
	if !active && actorID == id {
		return User{}, ErrSelfDeactivation
	}
	user, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return User{}, err
	}
	action := audit.ActionUserDeactivated
	if active {
		action = audit.ActionUserActivated
	}
	if s.audit != nil {
		var actor *uuid.UUID
		if actorID != uuid.Nil {
			actor = &actorID
		}
		s.audit.Record(ctx, actor, action, audit.ModuleAdmin, audit.Detail{
			"userId": user.ID.String(),
			"email":  user.Email,
		})
	}
	s.logger.Info("user status changed", slog.String("user_id", user.ID.String()), slog.Bool("active", active))
	return user, nil
}
