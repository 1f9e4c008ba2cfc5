package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/station2100/station/internal/shared"
	"github.com/station2100/station/internal/users"
)

// UserLookup finds accounts by email.
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
}

// Service resolves who a new session belongs to.
type Service struct {
	users UserLookup
}

// NewService constructs the auth service.
func NewService(lookup UserLookup) *Service {
	return &Service{users: lookup}
}

// ResolveSessionUser returns the active user owning email. Unknown and
// inactive accounts both yield shared.ErrInvalidCredentials.
func (s *Service) ResolveSessionUser(ctx context.Context, email string) (users.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return users.User{}, shared.ErrInvalidCredentials
		}
		return users.User{}, fmt.Errorf("auth: find user: %w", err)
	}
	if !user.IsActive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}
