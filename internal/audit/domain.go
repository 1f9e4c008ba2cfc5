package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Modules used when recording events.
const (
	ModuleAdmin  = "Admin"
	ModuleAuth   = "Auth"
	ModuleSystem = "System"
)

// Action codes for events recorded by the platform.
const (
	ActionPermissionList     = "permission.list"
	ActionPermissionView     = "permission.view"
	ActionPermissionCreated  = "permission.created"
	ActionPermissionUpdated  = "permission.updated"
	ActionPermissionDeleted  = "permission.deleted"
	ActionPermissionGranted  = "user.permission.granted"
	ActionPermissionRevoked  = "user.permission.revoked"
	ActionUserPermissionList = "user.permissions.list"
	ActionUserActivated      = "user.activated"
	ActionUserDeactivated    = "user.deactivated"
	ActionAuthzDenied        = "authz.denied"
	ActionSessionStarted     = "auth.session.started"
	ActionSessionEnded       = "auth.session.ended"
	ActionSeedAdminUser      = "system.seed.admin_user"
)

var errInvalidEvent = errors.New("audit: event requires action and module")

// Detail is the structured payload of an event. Values must be JSON
// primitives, nested Details/maps, or slices of those.
type Detail map[string]any

// Event is an immutable record of an attempted action.
type Event struct {
	ID         uuid.UUID  `json:"id"`
	ActorID    *uuid.UUID `json:"actorId,omitempty"`
	Action     string     `json:"action"`
	Module     string     `json:"module"`
	Detail     Detail     `json:"details"`
	OccurredAt time.Time  `json:"timestamp"`
}

// Sink durably appends events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// NewEvent builds an event, normalising detail into plain JSON values.
func NewEvent(actorID *uuid.UUID, action, module string, detail Detail, at time.Time) (Event, error) {
	action = strings.TrimSpace(action)
	module = strings.TrimSpace(module)
	if action == "" || module == "" {
		return Event{}, errInvalidEvent
	}
	normalized, err := detail.Normalize()
	if err != nil {
		return Event{}, err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return Event{}, fmt.Errorf("audit: event id: %w", err)
	}
	var actor *uuid.UUID
	if actorID != nil {
		copied := *actorID
		actor = &copied
	}
	return Event{
		ID:         id,
		ActorID:    actor,
		Action:     action,
		Module:     module,
		Detail:     normalized,
		OccurredAt: at.UTC(),
	}, nil
}

// Normalize round-trips the detail through JSON so the stored value contains
// only maps, slices, strings, float64, bool and nil.
func (d Detail) Normalize() (Detail, error) {
	if len(d) == 0 {
		return Detail{}, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("audit: encode detail: %w", err)
	}
	out := Detail{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("audit: decode detail: %w", err)
	}
	return out, nil
}
