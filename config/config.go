// ABOUTME: This file handles configuration management for greader-sync
// ABOUTME: Loads environment variables (optionally from a .env file) and the accounts file, then validates both

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the greader-sync service
type Config struct {
	// Service configuration
	ServiceName    string `validate:"required"`
	ServiceVersion string
	Environment    string
	LogLevel       string `validate:"oneof=debug info warn error"`
	LogFormat      string `validate:"oneof=json text"`

	Database   DatabaseConfig
	HTTP       HTTPConfig
	Sync       SyncSettings
	Kubernetes KubernetesConfig
	Redis      RedisConfig
	Telemetry  TelemetryConfig

	// TokenBrokerURL is used by accounts whose token store is "remote"
	TokenBrokerURL string `validate:"omitempty,url"`
	AccountsFile   string

	Accounts []AccountConfig `validate:"dive"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver   string `validate:"oneof=postgres sqlite"`
	Path     string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

// DSN returns the connection string for the configured driver
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// HTTPConfig holds the admin API settings
type HTTPConfig struct {
	ListenAddr string `validate:"required"`
	// AdminSecret signs admin API tokens; the admin API is disabled when empty
	AdminSecret         string `validate:"omitempty,min=32"`
	AdminRateLimit      int    `validate:"min=1"`
	OAuthRedirectURL    string `validate:"omitempty,url"`
	ShutdownTimeout     time.Duration
	RequestTimeout      time.Duration
	RequestsPerSecond   float64
	ProviderRPSBurst    int
	ProviderHTTPTimeout time.Duration
}

// SyncSettings holds scheduling settings shared by every account
type SyncSettings struct {
	Interval        time.Duration `validate:"min=1m"`
	CleanupInterval time.Duration
	RetentionDays   int `validate:"min=0"`
	CycleTimeout    time.Duration
	Parallelism     int `validate:"min=1"`
	RunOnStart      bool
	IconCacheSize   int
	IconCacheTTL    time.Duration
}

// KubernetesConfig holds Kubernetes integration settings
type KubernetesConfig struct {
	InCluster  bool
	Namespace  string
	Kubeconfig string
}

// RedisConfig holds the token store connection used by accounts with token_store "redis"
type RedisConfig struct {
	URL string
}

// TelemetryConfig controls OpenTelemetry tracing
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64 `validate:"gte=0,lte=1"`
}

// LoadConfig loads configuration from environment variables and the accounts file.
// A .env file in the working directory is read first when present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := &Config{
		ServiceName:    getEnvOrDefault("SERVICE_NAME", "greader-sync"),
		ServiceVersion: getEnvOrDefault("SERVICE_VERSION", "dev"),
		Environment:    getEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:       strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json")),

		Database: DatabaseConfig{
			Driver:   getEnvOrDefault("DB_DRIVER", "sqlite"),
			Path:     getEnvOrDefault("DB_PATH", "greader-sync.db"),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			Name:     getEnvOrDefault("DB_NAME", "greader_sync"),
			User:     getEnvOrDefault("DB_USER", "greader_sync"),
			Password: GetSecretOrEnv("DB_PASSWORD_FILE", "DB_PASSWORD"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},

		HTTP: HTTPConfig{
			ListenAddr:          getEnvOrDefault("HTTP_LISTEN_ADDR", ":8080"),
			AdminSecret:         GetSecretOrEnv("ADMIN_TOKEN_SECRET_FILE", "ADMIN_TOKEN_SECRET"),
			AdminRateLimit:      getEnvInt("ADMIN_RATE_LIMIT_PER_HOUR", 120),
			OAuthRedirectURL:    os.Getenv("OAUTH_REDIRECT_URL"),
			ShutdownTimeout:     getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 15*time.Second),
			RequestTimeout:      getEnvDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
			RequestsPerSecond:   getEnvFloat("PROVIDER_REQUESTS_PER_SECOND", 2),
			ProviderRPSBurst:    getEnvInt("PROVIDER_REQUESTS_BURST", 4),
			ProviderHTTPTimeout: getEnvDuration("PROVIDER_HTTP_TIMEOUT", 60*time.Second),
		},

		Sync: SyncSettings{
			Interval:        getEnvDuration("SYNC_INTERVAL", 30*time.Minute),
			CleanupInterval: getEnvDuration("SYNC_CLEANUP_INTERVAL", 24*time.Hour),
			RetentionDays:   getEnvInt("SYNC_RUN_RETENTION_DAYS", 30),
			CycleTimeout:    getEnvDuration("SYNC_CYCLE_TIMEOUT", 10*time.Minute),
			Parallelism:     getEnvInt("SYNC_PARALLELISM", 2),
			RunOnStart:      getEnvBool("SYNC_RUN_ON_START", true),
			IconCacheSize:   getEnvInt("ICON_CACHE_SIZE", 512),
			IconCacheTTL:    getEnvDuration("ICON_CACHE_TTL", 24*time.Hour),
		},

		Kubernetes: KubernetesConfig{
			InCluster:  getEnvBool("KUBERNETES_IN_CLUSTER", false),
			Namespace:  getEnvOrDefault("KUBERNETES_NAMESPACE", "default"),
			Kubeconfig: os.Getenv("KUBECONFIG"),
		},

		Redis: RedisConfig{
			URL: getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		},

		Telemetry: TelemetryConfig{
			Enabled:      getEnvBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			SampleRatio:  getEnvFloat("OTEL_SAMPLE_RATIO", 1.0),
		},

		TokenBrokerURL: os.Getenv("TOKEN_BROKER_URL"),
		AccountsFile:   os.Getenv("ACCOUNTS_FILE"),
	}

	accounts, err := loadAccounts(cfg.AccountsFile)
	if err != nil {
		return nil, err
	}
	cfg.Accounts = accounts

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Database.Driver == "postgres" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required for the postgres driver")
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		return fmt.Errorf("DB_PATH is required for the sqlite driver")
	}

	seen := make(map[string]bool, len(c.Accounts))
	for _, account := range c.Accounts {
		if seen[account.ID] {
			return fmt.Errorf("duplicate account id %q", account.ID)
		}
		seen[account.ID] = true

		if err := account.validate(); err != nil {
			return fmt.Errorf("account %s: %w", account.ID, err)
		}
		if account.TokenStore == TokenStoreRemote && c.TokenBrokerURL == "" {
			return fmt.Errorf("account %s: TOKEN_BROKER_URL is required for the remote token store", account.ID)
		}
	}
	return nil
}

// Account returns the account with id
func (c *Config) Account(id string) (AccountConfig, bool) {
	for _, account := range c.Accounts {
		if account.ID == id {
			return account, true
		}
	}
	return AccountConfig{}, false
}

// GetSecretOrEnv reads a secret from the file named by fileKey (Docker and
// Kubernetes secret mounts), falling back to the envKey variable
func GetSecretOrEnv(fileKey, envKey string) string {
	if path := os.Getenv(fileKey); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return os.Getenv(envKey)
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15m") or plain seconds ("900")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
