package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg := NewConfig()

	assert.Equal(t, int32(DefaultPort), cfg.HTTP.Port)
	assert.Equal(t, EnvDevelopment, cfg.Global.Env)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, 5, cfg.Auth.MaxLoginAttempts)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
	assert.Equal(t, "0 3 * * *", cfg.Audit.CleanupSchedule)
	assert.False(t, cfg.Auth.CSRFEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("PORT", "8080")
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("JWT_EXPIRE", "2h")
	t.Setenv("ADMIN_SECRET", "let-me-in")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "host=db user=garden")

	cfg := NewConfig()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, int32(8080), cfg.HTTP.Port)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "let-me-in", cfg.Auth.AdminSecret)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "host=db user=garden", cfg.Database.DSN)
	require.NoError(t, cfg.Validate())
}

func TestCookiePolicy(t *testing.T) {
	tests := []struct {
		env          Environment
		wantSecure   bool
		wantSameSite http.SameSite
	}{
		{EnvProduction, true, http.SameSiteNoneMode},
		{EnvDevelopment, false, http.SameSiteLaxMode},
		{EnvTest, false, http.SameSiteLaxMode},
	}

	for _, tt := range tests {
		t.Run(string(tt.env), func(t *testing.T) {
			secure, sameSite := cookiePolicy(tt.env)
			assert.Equal(t, tt.wantSecure, secure)
			assert.Equal(t, tt.wantSameSite, sameSite)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Global:   Global{Env: EnvDevelopment},
			Database: Database{Driver: DriverSQLite},
			Auth:     Auth{JWTSecret: "secret"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, ErrMissingJWTSecret},
		{"blank secret", func(c *Config) { c.Auth.JWTSecret = "   " }, ErrMissingJWTSecret},
		{"unknown env", func(c *Config) { c.Global.Env = "staging" }, ErrUnknownEnv},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, ErrUnknownDriver},
		{"csrf without secret", func(c *Config) { c.Auth.CSRFEnabled = true }, ErrMissingCSRFSecret},
		{"csrf with secret", func(c *Config) {
			c.Auth.CSRFEnabled = true
			c.Auth.CSRFSecret = "0123456789abcdef0123456789abcdef"
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
