package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/station2100/station/internal/app"
	"github.com/station2100/station/internal/audit"
	audithttp "github.com/station2100/station/internal/audit/http"
	"github.com/station2100/station/internal/auth"
	"github.com/station2100/station/internal/observability"
	"github.com/station2100/station/internal/platform/cache"
	"github.com/station2100/station/internal/platform/db"
	"github.com/station2100/station/internal/rbac"
	"github.com/station2100/station/internal/shared"
	"github.com/station2100/station/internal/users"
	"github.com/station2100/station/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := app.SignalContext(context.Background())
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("station exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, cfg.PGDSN, logger); err != nil {
			return err
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditRepo := audit.NewRepository(pool)

	var sink audit.Sink = auditRepo
	if cfg.AuditMode == app.AuditModeQueue {
		client := jobs.NewClient(cache.AsynqOpt(cfg.RedisAddr))
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		sink = audit.NewQueueSink(client)
	}
	recorder := audit.NewRecorder(sink, logger, audit.RecorderConfig{Timeout: cfg.AuditTimeout, Observer: metrics})

	rbacRepo := rbac.NewRepository(pool)
	engine := rbac.NewEngine(rbacRepo, logger, metrics)
	usersRepo := users.NewRepository(pool)
	rbacMiddleware := rbac.Middleware{Engine: engine, Actors: usersRepo, Audit: recorder, Logger: logger}

	sessionManager := shared.NewSessionManager(redisClient, "station_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	rbacService := rbac.NewService(rbacRepo, recorder, logger)
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, engine, recorder, rbacMiddleware)
	usersHandler := users.NewHandler(logger, users.NewService(usersRepo, recorder, logger), rbacMiddleware)
	authHandler := auth.NewHandler(logger, auth.NewService(usersRepo), sessionManager, recorder, cfg.DevLogin)
	auditHandler := audithttp.NewHandler(logger, audit.NewService(auditRepo), rbacMiddleware)

	inspector := asynq.NewInspector(cache.AsynqOpt(cfg.RedisAddr))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		RBACMiddleware:     rbacMiddleware,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		PermissionsHandler: permissionsHandler,
		AuditHandler:       auditHandler,
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
		Health: map[string]app.Pinger{
			"postgres": pool,
			"redis":    app.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("station listening", slog.String("addr", cfg.AppAddr), slog.String("audit_mode", cfg.AuditMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
