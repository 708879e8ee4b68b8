package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	pkgconfig "github.com/utafrali/ReputationGo/pkg/config"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Review providers.
const (
	ProviderMock = "mock"
	ProviderWeb  = "web"
)

// Config holds all configuration for the reputation service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"reputation-service"`

	HTTPPort int `env:"REPUTATION_HTTP_PORT" envDefault:"8080"`

	// Storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"postgres"`
	PostgresHost   string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort   int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser   string `env:"POSTGRES_USER" envDefault:"reputation"`
	PostgresPass   string `env:"POSTGRES_PASSWORD" envDefault:"reputation_secret"`
	PostgresDB     string `env:"REPUTATION_DB_NAME" envDefault:"reputation_db"`
	PostgresSSL    string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns     int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns     int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	// Hex-encoded 32-byte key sealing source credentials at rest.
	CredentialsKey string `env:"CREDENTIALS_KEY"`

	// Redis hosts the cross-instance sync lock. Empty disables it.
	RedisURL        string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SyncLockTTLSecs int    `env:"SYNC_LOCK_TTL_SECONDS" envDefault:"300"`

	// Kafka. No brokers means domain events are dropped.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC_PREFIX" envDefault:"reputation"`

	// Providers
	Provider           string  `env:"REVIEW_PROVIDER" envDefault:"mock"`
	ProviderTimeoutSec int     `env:"PROVIDER_TIMEOUT_SECONDS" envDefault:"15"`
	ProviderRPS        float64 `env:"PROVIDER_REQUESTS_PER_SECOND" envDefault:"2"`

	// Scheduler
	SyncSchedule string `env:"SYNC_SCHEDULE" envDefault:"@every 15m"`
	SyncEnabled  bool   `env:"SYNC_SCHEDULER_ENABLED" envDefault:"true"`

	// Auth
	JWTSecret string `env:"JWT_SECRET"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load reputation config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the env tags cannot express.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StorageBackend {
	case StoragePostgres:
		if c.PostgresHost == "" || c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_HOST and POSTGRES_USER are required for the postgres backend")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StoragePostgres, StorageMemory, c.StorageBackend)
	}
	if c.Provider != ProviderMock && c.Provider != ProviderWeb {
		return fmt.Errorf("REVIEW_PROVIDER must be %q or %q, got %q", ProviderMock, ProviderWeb, c.Provider)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.SyncEnabled {
		if _, err := cron.ParseStandard(c.SyncSchedule); err != nil {
			return fmt.Errorf("invalid SYNC_SCHEDULE %q: %w", c.SyncSchedule, err)
		}
	}
	if c.CredentialsKey != "" {
		if _, err := c.CredentialsKeyBytes(); err != nil {
			return err
		}
	}
	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.StorageBackend == StoragePostgres && c.CredentialsKey == "" {
			return fmt.Errorf("CREDENTIALS_KEY is required in production")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPass),
		Host:     fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:     "/" + c.PostgresDB,
		RawQuery: "sslmode=" + url.QueryEscape(c.PostgresSSL),
	}
	return u.String()
}

// CredentialsKeyBytes decodes the credentials key; it must be 32 bytes.
func (c *Config) CredentialsKeyBytes() (*[32]byte, error) {
	raw, err := hex.DecodeString(c.CredentialsKey)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("CREDENTIALS_KEY must be 64 hex characters")
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}
