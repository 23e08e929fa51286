package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backend types
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Identity provider types
const (
	ProviderREST = "rest"
	ProviderOIDC = "oidc"
	ProviderFake = "fake"
)

// Config holds all service configuration
type Config struct {
	Server        ServerConfig
	Stores        StoresConfig
	Provider      ProviderConfig
	Restore       RestoreConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server on a separate port for probes
	HealthPort string
}

// StoresConfig selects the backends for the kv store and user record store
type StoresConfig struct {
	// KVBackend is memory, sqlite, postgres, or redis
	KVBackend string
	// UserBackend is memory, sqlite, or postgres
	UserBackend string

	SQLitePath  string
	PostgresURL string

	RedisURL       string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
}

// ProviderConfig selects and configures the identity provider
type ProviderConfig struct {
	// Type is rest, oidc, or fake
	Type string

	RESTBaseURL string
	RESTAPIKey  string

	OIDCIssuerURL             string
	OIDCClientID              string
	OIDCClientSecret          string
	OIDCScopes                []string
	OIDCRegistrationEndpoint  string
	OIDCPasswordResetEndpoint string

	Timeout time.Duration
}

// RestoreConfig configures the remote data restore trigger
type RestoreConfig struct {
	Enabled   bool
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// AuditConfig configures the audit trail and its S3 archival
type AuditConfig struct {
	DBEnabled bool

	ArchiveEnabled  bool
	ArchiveBucket   string
	ArchivePrefix   string
	ArchiveSchedule string
	Retention       time.Duration

	S3Region   string
	S3Endpoint string
}

// ObservabilityConfig holds logging, metrics, and tracing settings
type ObservabilityConfig struct {
	LogLevel       string
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("TRACKLET_HOST", "0.0.0.0"),
			Port:            getEnv("TRACKLET_PORT", "8080"),
			ReadTimeout:     getEnvDuration("TRACKLET_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("TRACKLET_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("TRACKLET_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("TRACKLET_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("TRACKLET_HEALTH_PORT", "9090"),
		},
		Stores: StoresConfig{
			KVBackend:      getEnv("TRACKLET_KV_BACKEND", StoreSQLite),
			UserBackend:    getEnv("TRACKLET_USER_BACKEND", StoreSQLite),
			SQLitePath:     getEnv("TRACKLET_SQLITE_PATH", "tracklet.db"),
			PostgresURL:    getEnv("TRACKLET_POSTGRES_URL", ""),
			RedisURL:       getEnv("TRACKLET_REDIS_URL", ""),
			RedisPassword:  getEnv("TRACKLET_REDIS_PASSWORD", ""),
			RedisDB:        getEnvInt("TRACKLET_REDIS_DB", 0),
			RedisKeyPrefix: getEnv("TRACKLET_REDIS_KEY_PREFIX", "tracklet"),
		},
		Provider: ProviderConfig{
			Type:                      getEnv("TRACKLET_PROVIDER_TYPE", ProviderREST),
			RESTBaseURL:               getEnv("TRACKLET_PROVIDER_BASE_URL", ""),
			RESTAPIKey:                getEnv("TRACKLET_PROVIDER_API_KEY", ""),
			OIDCIssuerURL:             getEnv("TRACKLET_OIDC_ISSUER_URL", ""),
			OIDCClientID:              getEnv("TRACKLET_OIDC_CLIENT_ID", ""),
			OIDCClientSecret:          getEnv("TRACKLET_OIDC_CLIENT_SECRET", ""),
			OIDCScopes:                getEnvList("TRACKLET_OIDC_SCOPES", []string{"openid", "email", "profile"}),
			OIDCRegistrationEndpoint:  getEnv("TRACKLET_OIDC_REGISTRATION_ENDPOINT", ""),
			OIDCPasswordResetEndpoint: getEnv("TRACKLET_OIDC_PASSWORD_RESET_ENDPOINT", ""),
			Timeout:                   getEnvDuration("TRACKLET_PROVIDER_TIMEOUT", 10*time.Second),
		},
		Restore: RestoreConfig{
			Enabled:   getEnvBool("TRACKLET_RESTORE_ENABLED", false),
			BaseURL:   getEnv("TRACKLET_RESTORE_BASE_URL", ""),
			AuthToken: getEnv("TRACKLET_RESTORE_AUTH_TOKEN", ""),
			Timeout:   getEnvDuration("TRACKLET_RESTORE_TIMEOUT", 10*time.Second),
		},
		Audit: AuditConfig{
			DBEnabled:       getEnvBool("TRACKLET_AUDIT_DB_ENABLED", true),
			ArchiveEnabled:  getEnvBool("TRACKLET_AUDIT_ARCHIVE_ENABLED", false),
			ArchiveBucket:   getEnv("TRACKLET_AUDIT_ARCHIVE_BUCKET", ""),
			ArchivePrefix:   getEnv("TRACKLET_AUDIT_ARCHIVE_PREFIX", "audit"),
			ArchiveSchedule: getEnv("TRACKLET_AUDIT_ARCHIVE_SCHEDULE", "0 3 * * *"),
			Retention:       getEnvDuration("TRACKLET_AUDIT_RETENTION", 90*24*time.Hour),
			S3Region:        getEnv("TRACKLET_S3_REGION", "us-east-1"),
			S3Endpoint:      getEnv("TRACKLET_S3_ENDPOINT", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:           getEnv("TRACKLET_LOG_LEVEL", "info"),
			MetricsEnabled:     getEnvBool("TRACKLET_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("TRACKLET_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("TRACKLET_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("TRACKLET_OTEL_SERVICE_NAME", "tracklet-identity"),
			OTelServiceVersion: getEnv("TRACKLET_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("TRACKLET_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Stores.KVBackend {
	case StoreMemory:
	case StoreSQLite:
		if c.Stores.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite kv backend")
		}
	case StorePostgres:
		if c.Stores.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for the postgres kv backend")
		}
	case StoreRedis:
		if c.Stores.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis kv backend")
		}
	default:
		return fmt.Errorf("invalid kv backend: %s (must be memory, sqlite, postgres, or redis)", c.Stores.KVBackend)
	}

	switch c.Stores.UserBackend {
	case StoreMemory:
	case StoreSQLite:
		if c.Stores.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite user backend")
		}
	case StorePostgres:
		if c.Stores.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for the postgres user backend")
		}
	default:
		return fmt.Errorf("invalid user backend: %s (must be memory, sqlite, or postgres)", c.Stores.UserBackend)
	}

	switch c.Provider.Type {
	case ProviderREST:
		if c.Provider.RESTBaseURL == "" || c.Provider.RESTAPIKey == "" {
			return fmt.Errorf("provider base URL and API key are required for the rest provider")
		}
	case ProviderOIDC:
		if c.Provider.OIDCIssuerURL == "" || c.Provider.OIDCClientID == "" {
			return fmt.Errorf("OIDC issuer URL and client id are required for the oidc provider")
		}
	case ProviderFake:
	default:
		return fmt.Errorf("invalid provider type: %s (must be rest, oidc, or fake)", c.Provider.Type)
	}

	if c.Restore.Enabled && c.Restore.BaseURL == "" {
		return fmt.Errorf("restore base URL is required when restore is enabled")
	}

	if c.Audit.ArchiveEnabled {
		if !c.Audit.DBEnabled {
			return fmt.Errorf("audit archival requires the audit database sink")
		}
		if c.Audit.ArchiveBucket == "" {
			return fmt.Errorf("archive bucket is required when audit archival is enabled")
		}
	}

	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
