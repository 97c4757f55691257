package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/herbalgarden/internal/audit"
	"github.com/mrlokans/herbalgarden/internal/auth"
	"github.com/mrlokans/herbalgarden/internal/config"
	"github.com/mrlokans/herbalgarden/internal/database"
	auditrepo "github.com/mrlokans/herbalgarden/internal/database/audit"
	"github.com/mrlokans/herbalgarden/internal/database/bookmarks"
	"github.com/mrlokans/herbalgarden/internal/database/plants"
	"github.com/mrlokans/herbalgarden/internal/database/users"
	http_controllers "github.com/mrlokans/herbalgarden/internal/http"
	"github.com/mrlokans/herbalgarden/internal/metrics"
	"github.com/mrlokans/herbalgarden/internal/scheduler"
	"github.com/mrlokans/herbalgarden/internal/tasks"
)

// core holds the components shared by the server and the CLI commands.
type core struct {
	db      *database.Database
	users   *users.Repository
	tokens  *auth.TokenManager
	limiter *auth.RateLimiter
	auth    *auth.Service
	metrics *metrics.Metrics
}

func (c *core) close(log *zap.Logger) {
	c.limiter.Stop()
	if err := c.db.Close(); err != nil {
		log.Error("error closing database", zap.Error(err))
	}
}

func openCore(cfg *config.Config, log *zap.Logger) (*core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gormLevel := logger.Warn
	if cfg.IsProduction() {
		gormLevel = logger.Error
	}
	db, err := database.NewDatabase(cfg.Database, database.Options{LogLevel: gormLevel, Logger: log})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	userRepo := users.NewRepository(db.DB)
	limiter := auth.NewRateLimiter(auth.RateLimitConfig{
		MaxAttempts:     cfg.Auth.MaxLoginAttempts,
		WindowDuration:  cfg.Auth.RateLimitWindow,
		LockoutDuration: cfg.Auth.LockoutDuration,
	})

	service := auth.NewService(userRepo, auth.NewPasswordHasher(cfg.Auth.BcryptCost), tokens, auth.ServiceOptions{
		AdminSecret: cfg.Auth.AdminSecret,
		Limiter:     limiter,
		Metrics:     m,
		Logger:      log,
	})

	return &core{
		db:      db,
		users:   userRepo,
		tokens:  tokens,
		limiter: limiter,
		auth:    service,
		metrics: m,
	}, nil
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM, then shuts
// everything down in reverse order of startup.
func Run(cfg *config.Config, version string, log *zap.Logger) error {
	log.Info("starting herbal garden API",
		zap.String("version", version),
		zap.String("env", string(cfg.Global.Env)),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	c, err := openCore(cfg, log)
	if err != nil {
		return err
	}
	defer c.close(log)

	auditor := audit.NewService(auditrepo.NewRepository(c.db.DB), log)
	defer auditor.Wait()

	if cfg.Auth.AdminSecret == "" {
		log.Warn("ADMIN_SECRET is not set; only the first registered user becomes super-admin")
	}

	var taskClient *tasks.Client
	var cleanupScheduler *scheduler.AuditCleanupScheduler
	taskCtx, cancelTasks := context.WithCancel(context.Background())
	defer cancelTasks()

	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:           cfg.Tasks.Workers,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Error("error closing task client", zap.Error(err))
			}
		}()

		taskClient.Register(tasks.NewCleanupAuditEventsQueue(auditor, log))
		go taskClient.Start(taskCtx)

		cleanupScheduler = scheduler.NewAuditCleanupScheduler(taskClient, auditor, cfg.Audit.CleanupSchedule, cfg.Audit.RetentionDays, log)
		if err := cleanupScheduler.Start(taskCtx); err != nil {
			return fmt.Errorf("failed to start audit cleanup scheduler: %w", err)
		}
	} else {
		log.Info("background tasks disabled")
	}

	cookies := auth.NewCookieTransport(auth.CookiePolicy{
		Secure:   cfg.Auth.CookieSecure,
		SameSite: cfg.Auth.CookieSameSite,
		Domain:   cfg.Auth.CookieDomain,
	}, cfg.Auth.TokenTTL)

	routerCfg := http_controllers.RouterConfig{
		Logger:             log,
		Database:           c.db,
		Version:            version,
		AuthService:        c.auth,
		AuthMiddleware:     auth.NewMiddleware(c.tokens, c.users, cookies, c.metrics, log),
		Tokens:             c.tokens,
		Cookies:            cookies,
		Users:              c.users,
		Plants:             plants.NewRepository(c.db.DB),
		Bookmarks:          bookmarks.NewRepository(c.db.DB),
		Auditor:            auditor,
		Metrics:            c.metrics,
		AuditRetentionDays: cfg.Audit.RetentionDays,
		FrontendURL:        cfg.HTTP.FrontendURL,
		Production:         cfg.IsProduction(),
	}
	if taskClient != nil {
		routerCfg.TaskQueue = taskClient
	}
	if cfg.Auth.CSRFEnabled {
		routerCfg.CSRF = &auth.CSRFConfig{
			Secret: []byte(cfg.Auth.CSRFSecret),
			Cookie: auth.CookiePolicy{
				Secure:   cfg.Auth.CookieSecure,
				SameSite: cfg.Auth.CookieSameSite,
				Domain:   cfg.Auth.CookieDomain,
			},
			TrustedOrigins: []string{cfg.HTTP.FrontendURL},
		}
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if cleanupScheduler != nil {
			cleanupScheduler.Stop()
		}
		if taskClient != nil {
			taskClient.Stop(ctx)
			cancelTasks()
		}
	}

	return Serve(router, cfg, log, onShutdown)
}

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve listens until the process is signalled, then drains in-flight
// requests before calling onShutdown.
func Serve(router http.Handler, cfg *config.Config, log *zap.Logger, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server", zap.Duration("timeout", timeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	if onShutdown != nil {
		onShutdown(shutdownCtx)
	}

	log.Info("server exiting")
	return nil
}

// CreateAdmin provisions a super-admin account without going through the API.
func CreateAdmin(cfg *config.Config, log *zap.Logger, username, email, password string) error {
	c, err := openCore(cfg, log)
	if err != nil {
		return err
	}
	defer c.close(log)

	user, err := c.auth.CreateAdmin(context.Background(), username, email, password)
	if err != nil {
		return err
	}

	log.Info("super-admin created", zap.String("id", user.ID), zap.String("email", user.Email))
	return nil
}
