package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
auth:
  jwt_secret: "0123456789abcdef0123"
notification:
  max_attempts: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 3, cfg.Notification.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Notification.RetryInterval)
	assert.Equal(t, 2*time.Minute, cfg.Notification.PendingGrace)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "purchase-approval", cfg.Auth.Issuer)
	assert.False(t, cfg.Lark.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-the-environment-secret")
	t.Setenv("PA_SERVER_PORT", "7070")
	t.Setenv("PA_LARK_ENABLED", "true")
	t.Setenv("LARK_APP_ID", "cli_test")
	t.Setenv("LARK_APP_SECRET", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-the-environment-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Lark.Enabled)
	assert.Equal(t, "cli_test", cfg.Lark.AppID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:       ServerConfig{Port: 8080, Mode: "release"},
			Database:     DatabaseConfig{Path: "data/test.db"},
			Auth:         AuthConfig{JWTSecret: "0123456789abcdef", TokenTTL: time.Hour},
			Notification: NotificationConfig{MaxAttempts: 5, RetryInterval: time.Second, RetryBatch: 10, PendingGrace: time.Minute},
			Metrics:      MetricsConfig{Enabled: true, Path: "/metrics"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad mode", func(c *Config) { c.Server.Mode = "verbose" }, "server.mode"},
		{"no database", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "auth.jwt_secret"},
		{"lark without app id", func(c *Config) { c.Lark.Enabled = true }, "lark.app_id"},
		{"lark without secret", func(c *Config) {
			c.Lark.Enabled = true
			c.Lark.AppID = "cli"
		}, "lark.app_secret"},
		{"no attempts", func(c *Config) { c.Notification.MaxAttempts = 0 }, "notification.max_attempts"},
		{"no interval", func(c *Config) { c.Notification.RetryInterval = 0 }, "notification.retry_interval"},
		{"no batch", func(c *Config) { c.Notification.RetryBatch = 0 }, "notification.retry_batch"},
		{"no pending grace", func(c *Config) { c.Notification.PendingGrace = 0 }, "notification.pending_grace"},
		{"relative metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
		{"metrics disabled ignores path", func(c *Config) {
			c.Metrics.Enabled = false
			c.Metrics.Path = ""
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
