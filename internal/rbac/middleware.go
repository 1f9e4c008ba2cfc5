package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/station2100/station/internal/audit"
	"github.com/station2100/station/internal/platform/httpx"
	"github.com/station2100/station/internal/shared"
)

type actorContextKey struct{}

// ContextWithActor stores the resolved actor in ctx.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor resolved for the request, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// actorPtr returns nil when no actor was resolved so the Engine sees "no actor".
func actorPtr(ctx context.Context) *Actor {
	if actor, ok := ActorFromContext(ctx); ok {
		return &actor
	}
	return nil
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Engine *Engine
	Actors ActorResolver
	Audit  AuditRecorder
	Logger *slog.Logger
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// LoadActor resolves the session user into an Actor. Requests without a
// session user, or whose user no longer exists, continue without one.
func (m Middleware) LoadActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := shared.SessionUserID(r.Context())
		if !ok || m.Actors == nil {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := m.Actors.FindActor(r.Context(), id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				m.logger().Warn("rbac session user not found", slog.String("user_id", id.String()))
				next.ServeHTTP(w, r)
				return
			}
			m.logger().Error("rbac load actor", slog.String("user_id", id.String()), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// RequireAny lets the request through when at least one key is allowed. With
// no keys every request is denied.
func (m Middleware) RequireAny(keys ...string) func(http.Handler) http.Handler {
	return m.require("any", keys, m.Engine.CanAny)
}

// RequireAll lets the request through when every key is allowed. With no keys
// every request passes.
func (m Middleware) RequireAll(keys ...string) func(http.Handler) http.Handler {
	return m.require("all", keys, m.Engine.CanAll)
}

func (m Middleware) require(mode string, keys []string, check func(context.Context, *Actor, []string) bool) func(http.Handler) http.Handler {
	required := append([]string(nil), keys...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor := actorPtr(ctx)
			if check(ctx, actor, required) {
				next.ServeHTTP(w, r)
				return
			}
			if actor == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			m.logger().Info("rbac denied",
				slog.String("user_id", actor.ID.String()),
				slog.String("mode", mode),
				slog.Any("permissions", required),
				slog.String("path", r.URL.Path))
			if m.Audit != nil {
				m.Audit.Record(ctx, &actor.ID, audit.ActionAuthzDenied, audit.ModuleAuth, audit.Detail{
					"mode":        mode,
					"permissions": required,
					"method":      r.Method,
					"path":        r.URL.Path,
					"isActive":    actor.Active,
				})
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions")
		})
	}
}
