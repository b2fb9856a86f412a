// Package entrypoint assembles the application from configuration and runs
// the HTTP server until it receives a termination signal.
package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/theledlead/bookshelf/internal/audit"
	"github.com/theledlead/bookshelf/internal/auth"
	"github.com/theledlead/bookshelf/internal/config"
	"github.com/theledlead/bookshelf/internal/database"
	auditRepo "github.com/theledlead/bookshelf/internal/database/audit"
	"github.com/theledlead/bookshelf/internal/database/books"
	"github.com/theledlead/bookshelf/internal/database/comments"
	"github.com/theledlead/bookshelf/internal/database/ratings"
	"github.com/theledlead/bookshelf/internal/database/views"
	http_controllers "github.com/theledlead/bookshelf/internal/http"
	"github.com/theledlead/bookshelf/internal/logging"
	"github.com/theledlead/bookshelf/internal/media"
	"github.com/theledlead/bookshelf/internal/readonly"
	"github.com/theledlead/bookshelf/internal/scheduler"
	"github.com/theledlead/bookshelf/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs router until SIGINT or SIGTERM, then drains connections
// within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	zap.L().Info("shutting down server", zap.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting work before the background workers go away
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if onShutdown != nil {
		onShutdown(ctx)
	}

	zap.L().Info("server exited")
	return nil
}

// Run builds every component from cfg and serves until shutdown.
func Run(cfg *config.Config, version string) error {
	_, flush := logging.New(cfg.Log)
	defer flush()

	zap.L().Info("starting bookshelf", zap.String("version", version))
	if cfg.Global.ReadOnly {
		zap.L().Warn("read-only mode enabled, writes will be rejected")
	}
	gin.SetMode(gin.ReleaseMode)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			zap.L().Error("error closing database", zap.Error(err))
		}
	}()

	bookRepo := books.NewRepository(db.DB)
	auditSvc := audit.NewService(auditRepo.NewRepository(db.DB))
	defer auditSvc.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := media.NewStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize media store: %w", err)
	}
	mediaRoot := ""
	if local, ok := store.(*media.LocalStore); ok {
		mediaRoot = local.Root()
	}

	authService := auth.NewService(db.DB, cfg.Auth)

	sessionStore, err := newSessionStore(db)
	if err != nil {
		return err
	}
	sessionManager := auth.NewSessionManager(sessionStore, cfg.Auth)

	var csrfSecret []byte
	if cfg.Auth.CSRFEnabled {
		csrfSecret, err = sessionSecret(cfg.Auth.SessionSecret)
		if err != nil {
			return err
		}
	}

	loginLimiter := auth.NewRateLimiter(auth.RateLimitConfig{
		MaxAttempts:     cfg.Auth.MaxLoginAttempts,
		WindowDuration:  cfg.Auth.RateLimitWindow,
		LockoutDuration: cfg.Auth.LockoutDuration,
	})
	defer loginLimiter.Stop()

	requestLimiter := http_controllers.NewIPRateLimiter(cfg.Limiter)
	defer requestLimiter.Stop()

	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		Books:          bookRepo,
		Comments:       comments.NewRepository(db.DB),
		Ratings:        ratings.NewRepository(db.DB),
		Views:          views.NewRepository(db.DB),
		Audit:          auditSvc,
		AuthService:    authService,
		SessionManager: sessionManager,
		LoginLimiter:   loginLimiter,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		Media:          store,
		MediaRoot:      mediaRoot,
		MediaURLPrefix: cfg.Media.URLPrefix,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
		RequestLimiter: requestLimiter,
		ReadOnly:       readonly.NewMiddleware(cfg.Global.ReadOnly),
		Version:        version,
	}

	// Without the queue, maintenance jobs run their processors inline and
	// cover links are kept as given.
	var queue scheduler.Enqueuer
	var taskClient *tasks.Client
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			return fmt.Errorf("initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				zap.L().Error("error closing task client", zap.Error(err))
			}
		}()

		taskClient.Register(
			tasks.NewMirrorCoverQueue(bookRepo, media.NewFetcher(cfg.Media.MaxUploadBytes), store),
			tasks.NewCleanupAuditEventsQueue(auditSvc),
			tasks.NewPurgeExpiredTokensQueue(authService),
		)
		go taskClient.Start(ctx)

		queue = taskClient
		routerCfg.TaskQueue = taskClient
	}

	sched := scheduler.New(scheduler.MaintenanceJobs(cfg.Audit, queue, auditSvc, authService)...)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	routerCfg.Jobs = sched

	if n, err := authService.GetUserCount(); err == nil && n == 0 {
		zap.L().Warn("no users found, create a staff account with the create-user command")
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		sched.Stop()
		if taskClient != nil {
			taskClient.Stop(ctx)
		}
		cancel()
	}

	return Serve(router, cfg, onShutdown)
}

// newSessionStore keeps sessions next to the data in SQLite. Other
// drivers fall back to process memory, so sessions end with the process.
func newSessionStore(db *database.Database) (scs.Store, error) {
	if !db.IsSQLite() {
		zap.L().Warn("sessions are kept in memory for this database driver")
		return auth.NewMemoryStore(), nil
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	store, err := auth.NewSQLiteStore(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	return store, nil
}

// sessionSecret decodes a hex secret, accepts any other value as raw
// bytes, and generates one when none is configured.
func sessionSecret(configured string) ([]byte, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, nil
		}
		return []byte(configured), nil
	}
	generated, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	zap.L().Info("generated session secret, set AUTH_SESSION_SECRET to persist it")
	secret, err := hex.DecodeString(generated)
	if err != nil {
		return nil, fmt.Errorf("decode session secret: %w", err)
	}
	return secret, nil
}
