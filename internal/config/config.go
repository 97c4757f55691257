package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

type DatabaseDriver string

const (
	DriverSQLite   DatabaseDriver = "sqlite"
	DriverPostgres DatabaseDriver = "postgres"
)

var (
	ErrMissingJWTSecret  = errors.New("JWT_SECRET must be set")
	ErrUnknownEnv        = errors.New("unknown APP_ENV")
	ErrUnknownDriver     = errors.New("unknown DATABASE_DRIVER")
	ErrMissingCSRFSecret = errors.New("AUTH_CSRF_SECRET must be at least 32 bytes when CSRF is enabled")
)

type (
	Config struct {
		HTTP
		Global
		Log
		Database
		Auth
		Audit
		Tasks
		Metrics
	}

	HTTP struct {
		Port int32
		Host string
		// FrontendURL is the single origin allowed to call the API with credentials.
		FrontendURL string
	}
	Global struct {
		Env                      Environment
		ShutdownTimeoutInSeconds int
	}
	Log struct {
		Level string
	}
	Database struct {
		Driver DatabaseDriver
		Path   string // sqlite file
		DSN    string // postgres connection string
	}
	Auth struct {
		JWTSecret   string
		TokenTTL    time.Duration
		AdminSecret string
		BcryptCost  int

		// Derived from Env; see cookiePolicy.
		CookieSecure   bool
		CookieSameSite http.SameSite
		CookieDomain   string

		CSRFEnabled bool
		CSRFSecret  string

		MaxLoginAttempts int
		RateLimitWindow  time.Duration
		LockoutDuration  time.Duration
	}
	Audit struct {
		RetentionDays   int
		CleanupSchedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Metrics struct {
		Enabled bool
	}
)

// IsProduction reports whether the process runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Global.Env == EnvProduction
}

// Validate checks the startup preconditions. A non-nil error must abort startup.
func (c *Config) Validate() error {
	switch c.Global.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEnv, c.Global.Env)
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Database.Driver)
	}

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}

	if c.Auth.CSRFEnabled && len(c.Auth.CSRFSecret) < 32 {
		return ErrMissingCSRFSecret
	}

	return nil
}

// cookiePolicy returns the session cookie flags for env. Production serves the
// SPA from another origin over HTTPS and needs SameSite=None with Secure; every
// other environment is same-origin over plain HTTP.
func cookiePolicy(env Environment) (secure bool, sameSite http.SameSite) {
	if env == EnvProduction {
		return true, http.SameSiteNoneMode
	}
	return false, http.SameSiteLaxMode
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("app_env", string(EnvDevelopment))
	v.SetDefault("port", DefaultPort)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("frontend_url", "http://localhost:5173")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("log_level", "info")

	v.SetDefault("database_driver", string(DriverSQLite))
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")

	// Auth defaults
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_expire", DefaultTokenTTL)
	v.SetDefault("admin_secret", "")
	v.SetDefault("bcrypt_cost", 10)
	v.SetDefault("cookie_domain", "")
	v.SetDefault("auth_csrf_enabled", false)
	v.SetDefault("auth_csrf_secret", "")
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "15m")

	v.SetDefault("audit_retention_days", 30)
	v.SetDefault("audit_cleanup_schedule", "0 3 * * *")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("metrics_enabled", true)

	env := Environment(strings.ToLower(v.GetString("APP_ENV")))
	secure, sameSite := cookiePolicy(env)

	return &Config{
		HTTP: HTTP{
			Port:        v.GetInt32("PORT"),
			Host:        v.GetString("HOST"),
			FrontendURL: v.GetString("FRONTEND_URL"),
		},
		Global: Global{
			Env:                      env,
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Log: Log{
			Level: v.GetString("LOG_LEVEL"),
		},
		Database: Database{
			Driver: DatabaseDriver(strings.ToLower(v.GetString("DATABASE_DRIVER"))),
			Path:   v.GetString("DATABASE_PATH"),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Auth: Auth{
			JWTSecret:        v.GetString("JWT_SECRET"),
			TokenTTL:         v.GetDuration("JWT_EXPIRE"),
			AdminSecret:      v.GetString("ADMIN_SECRET"),
			BcryptCost:       v.GetInt("BCRYPT_COST"),
			CookieSecure:     secure,
			CookieSameSite:   sameSite,
			CookieDomain:     v.GetString("COOKIE_DOMAIN"),
			CSRFEnabled:      v.GetBool("AUTH_CSRF_ENABLED"),
			CSRFSecret:       v.GetString("AUTH_CSRF_SECRET"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Audit: Audit{
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Metrics: Metrics{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
	}
}
