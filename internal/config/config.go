package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no config path is provided.
const DefaultConfigPath = "config.yaml"

// envPrefix scopes all environment overrides.
const envPrefix = "GATEWAY_"

// AppConfig holds process-level inputs resolved from flags.
type AppConfig struct {
	ConfigPath string
}

// Config is the full gateway configuration. It is built once at startup and
// passed explicitly to every component that needs it.
type Config struct {
	Server       ServerConfig       `yaml:"server" envPrefix:"SERVER_"`
	Database     DatabaseConfig     `yaml:"database" envPrefix:"DATABASE_"`
	Redis        RedisConfig        `yaml:"redis" envPrefix:"REDIS_"`
	JWT          JWTConfig          `yaml:"jwt" envPrefix:"JWT_"`
	Auth         AuthConfig         `yaml:"auth" envPrefix:"AUTH_"`
	Quota        QuotaConfig        `yaml:"quota" envPrefix:"QUOTA_"`
	Usage        UsageConfig        `yaml:"usage" envPrefix:"USAGE_"`
	Log          LogConfig          `yaml:"log" envPrefix:"LOG_"`
	Response     ResponseConfig     `yaml:"response" envPrefix:"RESPONSE_"`
	Integrations IntegrationsConfig `yaml:"integrations" envPrefix:"INTEGRATIONS_"`
	Stripe       StripeConfig       `yaml:"stripe" envPrefix:"STRIPE_"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host         string        `yaml:"host" env:"HOST"`
	Port         int           `yaml:"port" env:"PORT"`
	ReadTimeout  time.Duration `yaml:"read-timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write-timeout" env:"WRITE_TIMEOUT"`
	TrustProxy   bool          `yaml:"trust-proxy" env:"TRUST_PROXY"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the relational store settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" env:"DSN"`
	MaxOpenConns    int           `yaml:"max-open-conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max-idle-conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn-max-lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig enables the per-IP burst limiter when Addr is set.
type RedisConfig struct {
	Addr              string `yaml:"addr" env:"ADDR"`
	Password          string `yaml:"password" env:"PASSWORD"`
	DB                int    `yaml:"db" env:"DB"`
	RequestsPerMinute int    `yaml:"requests-per-minute" env:"REQUESTS_PER_MINUTE"`
}

// JWTConfig holds session token signing settings.
type JWTConfig struct {
	Secret string        `yaml:"secret" env:"SECRET"`
	Expiry time.Duration `yaml:"expiry" env:"EXPIRY"`
}

// AuthConfig holds session bookkeeping settings.
type AuthConfig struct {
	SessionRetention time.Duration `yaml:"session-retention" env:"SESSION_RETENTION"`
	EnforceSessions  bool          `yaml:"enforce-sessions" env:"ENFORCE_SESSIONS"`
	TOTPIssuer       string        `yaml:"totp-issuer" env:"TOTP_ISSUER"`
}

// QuotaConfig maps plans to their default daily request limits.
type QuotaConfig struct {
	PlanLimits map[string]int `yaml:"plan-limits" env:"PLAN_LIMITS" envSeparator:"," envKeyValSeparator:":"`
}

// UsageConfig controls the usage recorder and retention cleaner.
type UsageConfig struct {
	QueueSize         int           `yaml:"queue-size" env:"QUEUE_SIZE"`
	RetentionDays     int           `yaml:"retention-days" env:"RETENTION_DAYS"`
	RetentionInterval time.Duration `yaml:"retention-interval" env:"RETENTION_INTERVAL"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	File       string `yaml:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"max-size-mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max-backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max-age-days" env:"MAX_AGE_DAYS"`
	JSON       bool   `yaml:"json" env:"JSON"`
}

// ResponseConfig holds values stamped on every response envelope.
type ResponseConfig struct {
	Creator string `yaml:"creator" env:"CREATOR"`
}

// IntegrationsConfig points the resource handlers at their upstreams.
type IntegrationsConfig struct {
	DownloaderBaseURL string        `yaml:"downloader-base-url" env:"DOWNLOADER_BASE_URL"`
	ChatBaseURL       string        `yaml:"chat-base-url" env:"CHAT_BASE_URL"`
	ChatAPIKey        string        `yaml:"chat-api-key" env:"CHAT_API_KEY"`
	Timeout           time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// StripeConfig holds payment integration settings.
type StripeConfig struct {
	SecretKey     string            `yaml:"secret-key" env:"SECRET_KEY"`
	WebhookSecret string            `yaml:"webhook-secret" env:"WEBHOOK_SECRET"`
	SuccessURL    string            `yaml:"success-url" env:"SUCCESS_URL"`
	CancelURL     string            `yaml:"cancel-url" env:"CANCEL_URL"`
	PlanPrices    map[string]string `yaml:"plan-prices" env:"PLAN_PRICES" envSeparator:"," envKeyValSeparator:":"`
}

// Default returns the configuration used when no file or env override is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             "data/gateway.db",
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			RequestsPerMinute: 120,
		},
		JWT: JWTConfig{
			Expiry: 30 * 24 * time.Hour,
		},
		Auth: AuthConfig{
			SessionRetention: 7 * 24 * time.Hour,
			TOTPIssuer:       "REST Gateway",
		},
		Quota: QuotaConfig{
			PlanLimits: map[string]int{
				"free":       100,
				"basic":      1000,
				"pro":        10000,
				"enterprise": 100000,
				"admin":      1000000,
			},
		},
		Usage: UsageConfig{
			QueueSize:         1024,
			RetentionDays:     90,
			RetentionInterval: 6 * time.Hour,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Response: ResponseConfig{
			Creator: "restgateway",
		},
		Integrations: IntegrationsConfig{
			Timeout: 20 * time.Second,
		},
	}
}

// ResolveConfigPath returns the config path, falling back to the default.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return DefaultConfigPath
	}
	return filepath.Clean(trimmed)
}

// ConfigExists reports whether a config file is present at path.
func ConfigExists(path string) bool {
	info, errStat := os.Stat(ResolveConfigPath(path))
	return errStat == nil && !info.IsDir()
}

// Load builds the configuration from defaults, the optional YAML file, a
// .env file next to the working directory, and GATEWAY_* env overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	configPath := ResolveConfigPath(path)
	data, errRead := os.ReadFile(configPath)
	switch {
	case errRead == nil:
		if errYAML := yaml.Unmarshal(data, &cfg); errYAML != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", configPath, errYAML)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", configPath, errRead)
	}

	if errDotenv := godotenv.Load(); errDotenv != nil && !errors.Is(errDotenv, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", errDotenv)
	}
	if errEnv := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); errEnv != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", errEnv)
	}

	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

// Validate checks invariants the rest of the gateway relies on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt.secret is required")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database.dsn is required")
	}
	if c.JWT.Expiry <= 0 {
		return errors.New("config: jwt.expiry must be positive")
	}
	if c.Auth.SessionRetention <= 0 {
		return errors.New("config: auth.session-retention must be positive")
	}
	for plan, limit := range c.Quota.PlanLimits {
		if limit < 0 {
			return fmt.Errorf("config: quota.plan-limits[%s] must not be negative", plan)
		}
	}
	return nil
}

// PlanLimit returns the daily request limit for a plan, falling back to the
// free plan when the plan is unknown.
func (c QuotaConfig) PlanLimit(plan string) int {
	if limit, ok := c.PlanLimits[strings.ToLower(strings.TrimSpace(plan))]; ok {
		return limit
	}
	return c.PlanLimits["free"]
}
