package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	audithttp "github.com/station2100/station/internal/audit/http"
	"github.com/station2100/station/internal/auth"
	"github.com/station2100/station/internal/observability"
	"github.com/station2100/station/internal/platform/httpx"
	"github.com/station2100/station/internal/rbac"
	"github.com/station2100/station/internal/shared"
	"github.com/station2100/station/internal/users"
	"github.com/station2100/station/jobs"
)

// Pinger reports dependency health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	RBACMiddleware     rbac.Middleware
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	PermissionsHandler *rbac.PermissionsHandler
	AuditHandler       *audithttp.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
	Health             map[string]Pinger
}

// NewRouter constructs the chi.Router with Station defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(params.RBACMiddleware.LoadActor)

	r.Get("/healthz", healthHandler(params.Logger, params.Health))
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/me", params.PermissionsHandler.MountSelfRoutes)
	}

	r.Route("/admin", func(r chi.Router) {
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		r.Route("/users", func(r chi.Router) {
			if params.PermissionsHandler != nil {
				r.Route("/{userID}/permissions", params.PermissionsHandler.MountUserRoutes)
			}
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(r)
			}
		})
		if params.AuditHandler != nil {
			r.Route("/audit-logs", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAny(shared.PermAdminViewAuditLogs))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}

func healthHandler(logger *slog.Logger, checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		result := map[string]string{"status": "ok"}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				if logger != nil {
					logger.Warn("health check failed", slog.String("dependency", name), slog.Any("error", err))
				}
				result[name] = "down"
				result["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "up"
		}
		httpx.JSON(w, status, result)
	}
}
