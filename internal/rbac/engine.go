package rbac

import (
	"context"
	"errors"
	"log/slog"
)

// Reason explains why a decision was reached.
type Reason string

const (
	ReasonNoActor           Reason = "no_actor"
	ReasonInactiveActor     Reason = "inactive_actor"
	ReasonSuperUser         Reason = "super_user"
	ReasonGranted           Reason = "granted"
	ReasonNotGranted        Reason = "not_granted"
	ReasonUnknownPermission Reason = "unknown_permission"
	ReasonStoreFault        Reason = "store_fault"
)

// Decision is the outcome of a single permission check.
type Decision struct {
	Key     string `json:"key"`
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
}

// DecisionObserver receives every decision, typically for metrics.
type DecisionObserver interface {
	ObserveDecision(reason string, allowed bool)
}

// Engine answers whether an actor may perform an action. It keeps no state
// between calls; every check reads the current snapshot of the Store.
type Engine struct {
	store    Store
	logger   *slog.Logger
	observer DecisionObserver
}

// NewEngine constructs an Engine. observer may be nil.
func NewEngine(store Store, logger *slog.Logger, observer DecisionObserver) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger, observer: observer}
}

// Can reports whether actor holds permission key. A nil or inactive actor is
// always denied; an active super-user is always allowed. Store faults deny.
func (e *Engine) Can(ctx context.Context, actor *Actor, key string) bool {
	return e.decide(ctx, actor, key, false).Allowed
}

// Decide is Can with the reason attached. For denied checks on unknown or
// inactive permissions the reason is ReasonUnknownPermission.
func (e *Engine) Decide(ctx context.Context, actor *Actor, key string) Decision {
	return e.decide(ctx, actor, key, true)
}

// CanAny reports whether at least one key is allowed. An empty list is denied,
// for super-users too.
func (e *Engine) CanAny(ctx context.Context, actor *Actor, keys []string) bool {
	for _, key := range keys {
		if e.Can(ctx, actor, key) {
			return true
		}
	}
	return false
}

// CanAll reports whether every key is allowed. An empty list is allowed for
// every actor, including nil and inactive ones.
func (e *Engine) CanAll(ctx context.Context, actor *Actor, keys []string) bool {
	for _, key := range keys {
		if !e.Can(ctx, actor, key) {
			return false
		}
	}
	return true
}

// ListPermissions returns the keys explicitly granted to actor. Super-users
// get no implicit expansion, so the list may be empty while every Can call
// for the same actor is allowed.
func (e *Engine) ListPermissions(ctx context.Context, actor *Actor) []string {
	if actor == nil || !actor.Active {
		return []string{}
	}
	keys, err := e.store.ListGrantedPermissionKeys(ctx, actor.ID)
	if err != nil {
		e.logger.ErrorContext(ctx, "rbac list permissions", slog.String("actor_id", actor.ID.String()), slog.Any("error", err))
		return []string{}
	}
	if keys == nil {
		return []string{}
	}
	return keys
}

func (e *Engine) decide(ctx context.Context, actor *Actor, key string, explain bool) Decision {
	d := e.evaluate(ctx, actor, key, explain)
	if e.observer != nil {
		e.observer.ObserveDecision(string(d.Reason), d.Allowed)
	}
	return d
}

func (e *Engine) evaluate(ctx context.Context, actor *Actor, key string, explain bool) Decision {
	switch {
	case actor == nil:
		return Decision{Key: key, Reason: ReasonNoActor}
	case !actor.Active:
		return Decision{Key: key, Reason: ReasonInactiveActor}
	case actor.SuperUser:
		return Decision{Key: key, Allowed: true, Reason: ReasonSuperUser}
	}

	granted, err := e.store.HasGrant(ctx, actor.ID, key)
	if err != nil {
		e.logger.ErrorContext(ctx, "rbac has grant",
			slog.String("actor_id", actor.ID.String()),
			slog.String("permission", key),
			slog.Any("error", err))
		return Decision{Key: key, Reason: ReasonStoreFault}
	}
	if granted {
		return Decision{Key: key, Allowed: true, Reason: ReasonGranted}
	}
	if !explain {
		return Decision{Key: key, Reason: ReasonNotGranted}
	}

	if _, err := e.store.FindPermissionByKey(ctx, key); errors.Is(err, ErrNotFound) {
		return Decision{Key: key, Reason: ReasonUnknownPermission}
	} else if err != nil {
		e.logger.WarnContext(ctx, "rbac find permission", slog.String("permission", key), slog.Any("error", err))
	}
	return Decision{Key: key, Reason: ReasonNotGranted}
}
