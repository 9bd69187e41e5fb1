// Package config loads server settings.
//
// Sources, lowest precedence first:
//  1. Defaults below
//  2. An optional config file (YAML, TOML or JSON, picked by extension)
//  3. Environment variables (PORT, DB_DRIVER, JWT_SECRET, ...)
//
// File keys are the mapstructure names, nested by section:
//
//	port: 8080
//	db:
//	  driver: postgres
//	  dsn: postgres://codevault@localhost/codevault
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinJWTSecretLength is the shortest HS256 secret the server accepts.
const MinJWTSecretLength = 32

type Config struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	// CookieSecure marks session cookies Secure. Turn it on behind HTTPS.
	CookieSecure   bool  `mapstructure:"cookie_secure"`
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	DB      DBConfig      `mapstructure:"db"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Blob    BlobConfig    `mapstructure:"blob"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`    // file path for sqlite, URL for postgres
}

type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	OwnerOpenID        string        `mapstructure:"owner_open_id"`
	GitHubClientID     string        `mapstructure:"github_client_id"`
	GitHubClientSecret string        `mapstructure:"github_client_secret"`
	GitHubCallbackURL  string        `mapstructure:"github_callback_url"`
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (a AuthConfig) GitHubEnabled() bool {
	return a.GitHubClientID != "" && a.GitHubClientSecret != ""
}

type BlobConfig struct {
	Backend   string `mapstructure:"backend"` // "local", "gcs" or "memory"
	Dir       string `mapstructure:"dir"`
	PublicURL string `mapstructure:"public_url"`

	GCSBucket          string `mapstructure:"gcs_bucket"`
	GCSCredentialsFile string `mapstructure:"gcs_credentials_file"`
	GCSEndpoint        string `mapstructure:"gcs_endpoint"`
}

// LLMConfig points at an OpenAI-compatible server. An empty BaseURL turns
// the assistant off.
type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig backs the chat rate limiter. An empty Addr disables limiting.
type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	ChatRateLimit  int           `mapstructure:"chat_rate_limit"`
	ChatRateWindow time.Duration `mapstructure:"chat_rate_window"`
}

type SandboxConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	PoolSize int           `mapstructure:"pool_size"`
}

// envBindings maps config keys to environment variables. When several
// variables are listed the first one set wins.
var envBindings = map[string][]string{
	"port":             {"PORT"},
	"log_level":        {"LOG_LEVEL"},
	"cookie_secure":    {"COOKIE_SECURE"},
	"max_upload_bytes": {"MAX_UPLOAD_BYTES"},

	"db.driver": {"DB_DRIVER"},
	"db.dsn":    {"DB_DSN", "DB_PATH"},

	"auth.jwt_secret":           {"JWT_SECRET"},
	"auth.session_ttl":          {"SESSION_TTL"},
	"auth.owner_open_id":        {"OWNER_OPEN_ID"},
	"auth.github_client_id":     {"GITHUB_CLIENT_ID"},
	"auth.github_client_secret": {"GITHUB_CLIENT_SECRET"},
	"auth.github_callback_url":  {"GITHUB_CALLBACK_URL"},

	"blob.backend":              {"BLOB_BACKEND"},
	"blob.dir":                  {"BLOB_DIR"},
	"blob.public_url":           {"BLOB_PUBLIC_URL"},
	"blob.gcs_bucket":           {"GCS_BUCKET"},
	"blob.gcs_credentials_file": {"GCS_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS"},
	"blob.gcs_endpoint":         {"GCS_ENDPOINT"},

	"llm.base_url": {"LLM_BASE_URL"},
	"llm.api_key":  {"LLM_API_KEY"},
	"llm.model":    {"LLM_MODEL"},
	"llm.timeout":  {"LLM_TIMEOUT"},

	"redis.addr":             {"REDIS_ADDR"},
	"redis.chat_rate_limit":  {"CHAT_RATE_LIMIT"},
	"redis.chat_rate_window": {"CHAT_RATE_WINDOW"},

	"sandbox.enabled":   {"SANDBOX_ENABLED"},
	"sandbox.timeout":   {"SANDBOX_TIMEOUT"},
	"sandbox.pool_size": {"SANDBOX_POOL_SIZE"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("max_upload_bytes", 10<<20)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "data/codevault.db")

	v.SetDefault("auth.session_ttl", 7*24*time.Hour)

	v.SetDefault("blob.backend", "local")
	v.SetDefault("blob.dir", "data/files")
	v.SetDefault("blob.public_url", "/files")

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("redis.chat_rate_limit", 20)
	v.SetDefault("redis.chat_rate_window", time.Minute)

	v.SetDefault("sandbox.enabled", true)
	v.SetDefault("sandbox.timeout", 5*time.Second)
	v.SetDefault("sandbox.pool_size", 2)
}

// Load reads the configuration. configFile may be empty; when set, the file
// must exist.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if cfg.Auth.GitHubCallbackURL == "" {
		cfg.Auth.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &ConfigError{Field: "port", Message: fmt.Sprintf("%d is not a valid port", c.Port)}
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return &ConfigError{Field: "log_level", Message: err.Error()}
	}
	if c.MaxUploadBytes <= 0 {
		return &ConfigError{Field: "max_upload_bytes", Message: "must be positive"}
	}

	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return &ConfigError{Field: "db.driver", Message: fmt.Sprintf("unsupported driver %q (want sqlite or postgres)", c.DB.Driver)}
	}
	if c.DB.DSN == "" {
		return &ConfigError{Field: "db.dsn", Message: "required"}
	}

	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return &ConfigError{Field: "auth.jwt_secret", Message: fmt.Sprintf("must be at least %d characters (try: openssl rand -hex 32)", MinJWTSecretLength)}
	}
	if c.Auth.SessionTTL <= 0 {
		return &ConfigError{Field: "auth.session_ttl", Message: "must be positive"}
	}
	if (c.Auth.GitHubClientID == "") != (c.Auth.GitHubClientSecret == "") {
		return &ConfigError{Field: "auth.github_client_secret", Message: "GitHub client id and secret must be set together"}
	}

	switch c.Blob.Backend {
	case "local":
		if c.Blob.Dir == "" {
			return &ConfigError{Field: "blob.dir", Message: "required for the local backend"}
		}
	case "gcs":
		if c.Blob.GCSBucket == "" {
			return &ConfigError{Field: "blob.gcs_bucket", Message: "required for the gcs backend"}
		}
	case "memory":
	default:
		return &ConfigError{Field: "blob.backend", Message: fmt.Sprintf("unsupported backend %q (want local, gcs or memory)", c.Blob.Backend)}
	}

	if c.LLM.BaseURL != "" && c.LLM.Timeout <= 0 {
		return &ConfigError{Field: "llm.timeout", Message: "must be positive"}
	}
	if c.Redis.Addr != "" && (c.Redis.ChatRateLimit <= 0 || c.Redis.ChatRateWindow <= 0) {
		return &ConfigError{Field: "redis.chat_rate_limit", Message: "limit and window must be positive when redis is configured"}
	}
	if c.Sandbox.Enabled && (c.Sandbox.Timeout <= 0 || c.Sandbox.PoolSize <= 0) {
		return &ConfigError{Field: "sandbox.timeout", Message: "timeout and pool size must be positive"}
	}
	return nil
}

// SlogLevel is LogLevel as a slog.Level. Validate has already rejected
// unknown names.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q (want debug, info, warn or error)", s)
	}
	return level, nil
}

// ConfigError names the setting that failed validation.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Field + ": " + e.Message
}
