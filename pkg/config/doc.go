// Package config provides service configuration from environment variables.
//
// # Overview
//
// This package loads and validates configuration from TRACKLET_* environment
// variables with sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	TRACKLET_HOST="0.0.0.0"
//	TRACKLET_PORT="8080"
//	TRACKLET_HEALTH_PORT="9090"
//	TRACKLET_READ_TIMEOUT="15s"
//	TRACKLET_WRITE_TIMEOUT="15s"
//
// Store settings:
//
//	TRACKLET_KV_BACKEND="sqlite"    # memory, sqlite, postgres, redis
//	TRACKLET_USER_BACKEND="sqlite"  # memory, sqlite, postgres
//	TRACKLET_SQLITE_PATH="tracklet.db"
//	TRACKLET_POSTGRES_URL="postgres://localhost/tracklet"
//	TRACKLET_REDIS_URL="redis://localhost:6379"
//
// Identity provider settings:
//
//	TRACKLET_PROVIDER_TYPE="rest"  # rest, oidc, fake
//	TRACKLET_PROVIDER_BASE_URL="https://identity.example.com"
//	TRACKLET_PROVIDER_API_KEY="..."
//	TRACKLET_OIDC_ISSUER_URL="https://issuer.example.com"
//	TRACKLET_OIDC_CLIENT_ID="tracklet"
//
// Audit settings:
//
//	TRACKLET_AUDIT_DB_ENABLED="true"
//	TRACKLET_AUDIT_ARCHIVE_ENABLED="false"
//	TRACKLET_AUDIT_ARCHIVE_BUCKET="tracklet-audit"
//	TRACKLET_AUDIT_ARCHIVE_SCHEDULE="0 3 * * *"
//	TRACKLET_AUDIT_RETENTION="2160h"
//
// Observability settings:
//
//	TRACKLET_LOG_LEVEL="info"  # debug, info, warn, error
//	TRACKLET_METRICS_ENABLED="true"
//	TRACKLET_OTEL_ENABLED="false"
//	TRACKLET_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Provider: %s\n", cfg.Provider.Type)
package config
