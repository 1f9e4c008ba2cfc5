package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/station2100/station/internal/platform/httpx"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = fmt.Errorf("rbac: %w", httpx.ErrNotFound)
	// ErrDuplicateKey indicates a permission key collision.
	ErrDuplicateKey = fmt.Errorf("rbac: permission key: %w", httpx.ErrDuplicate)
	// ErrInvalidInput wraps validation failures on administrative writes.
	ErrInvalidInput = fmt.Errorf("rbac: %w", httpx.ErrValidation)
)

// Actor describes the identity an authorization check is evaluated for.
type Actor struct {
	ID        uuid.UUID `json:"id"`
	Active    bool      `json:"isActive"`
	SuperUser bool      `json:"isAdmin"`
}

// Permission represents an atomic, independently grantable capability.
type Permission struct {
	ID          uuid.UUID `json:"id"`
	Key         string    `json:"key"`
	Description string    `json:"description"`
	Module      string    `json:"module"`
	Category    string    `json:"category,omitempty"`
	Active      bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Grant ties a permission to an actor.
type Grant struct {
	ActorID      uuid.UUID
	PermissionID uuid.UUID
	GrantedAt    time.Time
	GrantedBy    *uuid.UUID
}

// UserGrant is a grant joined with its permission, as listed for administration.
type UserGrant struct {
	Permission Permission `json:"permission"`
	GrantedAt  time.Time  `json:"grantedAt"`
	GrantedBy  *uuid.UUID `json:"grantedBy,omitempty"`
}

// Store is the read surface the Engine evaluates against.
//
// FindPermissionByKey only returns active permissions and reports absence as
// ErrNotFound. ListGrantedPermissionKeys and HasGrant only consider grants that
// link an active actor to an active permission; an unknown actor yields an
// empty result rather than an error.
type Store interface {
	FindPermissionByKey(ctx context.Context, key string) (Permission, error)
	ListGrantedPermissionKeys(ctx context.Context, actorID uuid.UUID) ([]string, error)
	HasGrant(ctx context.Context, actorID uuid.UUID, key string) (bool, error)
}

// ActorResolver loads the authorization view of a user.
type ActorResolver interface {
	FindActor(ctx context.Context, id uuid.UUID) (Actor, error)
}

// PermissionInput carries the fields of a new permission.
type PermissionInput struct {
	Key         string `json:"key" validate:"required,max=100,permission_key"`
	Description string `json:"description" validate:"required,max=500"`
	Module      string `json:"module" validate:"required,max=50"`
	Category    string `json:"category" validate:"omitempty,max=50"`
}

// PermissionPatch is a partial update; nil fields are left unchanged.
type PermissionPatch struct {
	Key         *string `json:"key" validate:"omitempty,max=100,permission_key"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Module      *string `json:"module" validate:"omitempty,max=50"`
	Category    *string `json:"category" validate:"omitempty,max=50"`
	Active      *bool   `json:"isActive"`
}

// Empty reports whether the patch changes nothing.
func (p PermissionPatch) Empty() bool {
	return p.Key == nil && p.Description == nil && p.Module == nil && p.Category == nil && p.Active == nil
}

// PermissionRef identifies a permission by ID or by key. ID wins when both
// are set.
type PermissionRef struct {
	ID  *uuid.UUID `json:"permissionId"`
	Key string     `json:"permissionKey"`
}

// PermissionGroup is a module-level bucket of permissions for display.
type PermissionGroup struct {
	Module      string       `json:"module"`
	Label       string       `json:"label"`
	Permissions []Permission `json:"permissions"`
}
