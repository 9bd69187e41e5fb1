package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// isolateEnv blanks every bound variable so the host environment cannot
// leak into a test. viper ignores empty variables.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, envs := range envBindings {
		for _, env := range envs {
			t.Setenv(env, "")
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolateEnv(t)
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "data/codevault.db", cfg.DB.DSN)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.Auth.GitHubCallbackURL)
	assert.False(t, cfg.Auth.GitHubEnabled())
	assert.Equal(t, "local", cfg.Blob.Backend)
	assert.Equal(t, "/files", cfg.Blob.PublicURL)
	assert.Empty(t, cfg.LLM.BaseURL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.True(t, cfg.Sandbox.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout)
}

func TestLoad_Environment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://vault@db/vault")
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")
	t.Setenv("BLOB_BACKEND", "gcs")
	t.Setenv("GCS_BUCKET", "vault-files")
	t.Setenv("LLM_BASE_URL", "http://llm:8000")
	t.Setenv("LLM_TIMEOUT", "15s")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CHAT_RATE_LIMIT", "5")
	t.Setenv("SANDBOX_ENABLED", "false")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "postgres://vault@db/vault", cfg.DB.DSN)
	assert.True(t, cfg.Auth.GitHubEnabled())
	assert.Equal(t, "http://localhost:9090/auth/github/callback", cfg.Auth.GitHubCallbackURL)
	assert.Equal(t, "gcs", cfg.Blob.Backend)
	assert.Equal(t, "vault-files", cfg.Blob.GCSBucket)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Redis.ChatRateLimit)
	assert.False(t, cfg.Sandbox.Enabled)
	assert.True(t, cfg.CookieSecure)
}

func TestLoad_DBPathAlias(t *testing.T) {
	isolateEnv(t)
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DB_PATH", "/var/lib/codevault/vault.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/codevault/vault.db", cfg.DB.DSN)
}

func TestLoad_FileThenEnv(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "codevault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 7000
auth:
  jwt_secret: `+testSecret+`
blob:
  backend: memory
sandbox:
  enabled: false
`), 0o600))
	t.Setenv("PORT", "7001")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Port, "environment overrides the file")
	assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, "memory", cfg.Blob.Backend)
	assert.False(t, cfg.Sandbox.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	isolateEnv(t)
	t.Setenv("JWT_SECRET", testSecret)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:           8080,
			LogLevel:       "info",
			MaxUploadBytes: 1 << 20,
			DB:             DBConfig{Driver: "sqlite", DSN: "x.db"},
			Auth:           AuthConfig{JWTSecret: testSecret, SessionTTL: time.Hour},
			Blob:           BlobConfig{Backend: "memory"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Port = 0 }, "port"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad driver", func(c *Config) { c.DB.Driver = "mysql" }, "db.driver"},
		{"empty dsn", func(c *Config) { c.DB.DSN = "" }, "db.dsn"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "auth.jwt_secret"},
		{"half github", func(c *Config) { c.Auth.GitHubClientID = "id" }, "auth.github_client_secret"},
		{"bad backend", func(c *Config) { c.Blob.Backend = "s3" }, "blob.backend"},
		{"gcs without bucket", func(c *Config) { c.Blob.Backend = "gcs" }, "blob.gcs_bucket"},
		{"redis without limit", func(c *Config) { c.Redis.Addr = "localhost:6379" }, "redis.chat_rate_limit"},
		{"sandbox without timeout", func(c *Config) { c.Sandbox.Enabled = true }, "sandbox.timeout"},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)

			err := c.Validate()
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
