package users

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/station2100/station/internal/platform/httpx"
	"github.com/station2100/station/internal/rbac"
)

var (
	// ErrNotFound indicates the user does not exist. It matches rbac.ErrNotFound.
	ErrNotFound = fmt.Errorf("users: user %w", rbac.ErrNotFound)
	// ErrSelfDeactivation prevents an administrator from locking themselves out.
	ErrSelfDeactivation = fmt.Errorf("users: cannot deactivate own account: %w", httpx.ErrValidation)
)

// User represents a user account for management.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Actor returns the authorization view of the user.
func (u User) Actor() rbac.Actor {
	return rbac.Actor{ID: u.ID, Active: u.IsActive, SuperUser: u.IsAdmin}
}
