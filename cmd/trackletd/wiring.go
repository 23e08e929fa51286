package main

import (
	"context"
	"database/sql"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tracklet/tracklet/pkg/accounts"
	"github.com/tracklet/tracklet/pkg/audit"
	"github.com/tracklet/tracklet/pkg/config"
	"github.com/tracklet/tracklet/pkg/identity"
	"github.com/tracklet/tracklet/pkg/kvstore"
	"github.com/tracklet/tracklet/pkg/observability"
	"github.com/tracklet/tracklet/pkg/userstore"
)

// stores bundles the persistence handles the daemon wires together
type stores struct {
	kv    kvstore.Store
	users userstore.Store

	// auditDB backs the audit trail sink; nil when the sink is disabled
	auditDB      *sql.DB
	auditDialect audit.Dialect
}

// buildStores opens the configured backends and registers their cleanup
func buildStores(ctx context.Context, cfg *config.Config, shutdowner *observability.Shutdowner) (*stores, error) {
	var sqliteDB, postgresDB *sql.DB

	openSQLite := func() (*sql.DB, error) {
		if sqliteDB != nil {
			return sqliteDB, nil
		}
		db, err := sql.Open("sqlite3", cfg.Stores.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// SQLite serializes writes; a single connection avoids lock errors.
		db.SetMaxOpenConns(1)
		sqliteDB = db
		shutdowner.Register("sqlite", func(context.Context) error { return db.Close() })
		return db, nil
	}
	openPostgres := func() (*sql.DB, error) {
		if postgresDB != nil {
			return postgresDB, nil
		}
		db, err := sql.Open("postgres", cfg.Stores.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		postgresDB = db
		shutdowner.Register("postgres", func(context.Context) error { return db.Close() })
		return db, nil
	}

	out := &stores{}

	switch cfg.Stores.KVBackend {
	case config.StoreMemory:
		out.kv = kvstore.NewMemoryStore()
	case config.StoreSQLite:
		db, err := openSQLite()
		if err != nil {
			return nil, err
		}
		store := kvstore.NewSQLStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		out.kv = store
	case config.StorePostgres:
		db, err := openPostgres()
		if err != nil {
			return nil, err
		}
		store := kvstore.NewSQLStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		out.kv = store
	case config.StoreRedis:
		store, err := kvstore.NewRedisStore(ctx, kvstore.RedisOptions{
			URL:       cfg.Stores.RedisURL,
			Password:  cfg.Stores.RedisPassword,
			DB:        cfg.Stores.RedisDB,
			KeyPrefix: cfg.Stores.RedisKeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		shutdowner.Register("redis", func(context.Context) error { return store.Close() })
		out.kv = store
	}

	switch cfg.Stores.UserBackend {
	case config.StoreMemory:
		out.users = userstore.NewMemoryStore()
	case config.StoreSQLite:
		db, err := openSQLite()
		if err != nil {
			return nil, err
		}
		store := userstore.NewSQLStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		out.users = store
	case config.StorePostgres:
		db, err := openPostgres()
		if err != nil {
			return nil, err
		}
		store := userstore.NewSQLStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		out.users = store
	}

	if cfg.Audit.DBEnabled {
		switch {
		case postgresDB != nil:
			out.auditDB, out.auditDialect = postgresDB, audit.DialectPostgres
		case sqliteDB != nil:
			out.auditDB, out.auditDialect = sqliteDB, audit.DialectSQLite
		default:
			db, err := openSQLite()
			if err != nil {
				return nil, err
			}
			out.auditDB, out.auditDialect = db, audit.DialectSQLite
		}
	}

	return out, nil
}

// buildProvider constructs the configured identity provider
func buildProvider(ctx context.Context, cfg *config.Config) (identity.Provider, error) {
	switch cfg.Provider.Type {
	case config.ProviderREST:
		return identity.NewRESTProvider(identity.RESTOptions{
			BaseURL: cfg.Provider.RESTBaseURL,
			APIKey:  cfg.Provider.RESTAPIKey,
			Timeout: cfg.Provider.Timeout,
		})
	case config.ProviderOIDC:
		return identity.NewOIDCProvider(ctx, identity.OIDCOptions{
			IssuerURL:             cfg.Provider.OIDCIssuerURL,
			ClientID:              cfg.Provider.OIDCClientID,
			ClientSecret:          cfg.Provider.OIDCClientSecret,
			Scopes:                cfg.Provider.OIDCScopes,
			RegistrationEndpoint:  cfg.Provider.OIDCRegistrationEndpoint,
			PasswordResetEndpoint: cfg.Provider.OIDCPasswordResetEndpoint,
			Timeout:               cfg.Provider.Timeout,
		})
	case config.ProviderFake:
		return identity.NewFakeProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider.Type)
	}
}

// buildAuditTrail assembles the audit logger from the enabled sinks and
// returns the database sink separately for the archiver
func buildAuditTrail(cfg *config.Config, logger *observability.Logger, db *sql.DB, dialect audit.Dialect) (audit.Logger, *audit.DBSink, error) {
	sinks := []audit.Logger{audit.NewLogSink(logger)}

	var dbSink *audit.DBSink
	if cfg.Audit.DBEnabled {
		var err error
		dbSink, err = audit.NewDBSink(db, dialect)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, dbSink)
	}

	return audit.NewMultiLogger(sinks...), dbSink, nil
}

// buildArchiver creates the S3 archiver for aged audit events
func buildArchiver(ctx context.Context, cfg *config.Config, sink *audit.DBSink, logger *observability.Logger) (*audit.Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Audit.S3Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Audit.S3Endpoint != "" {
			o.BaseEndpoint = &cfg.Audit.S3Endpoint
			o.UsePathStyle = true
		}
	})

	return audit.NewArchiver(sink, client, audit.ArchiverOptions{
		Bucket:    cfg.Audit.ArchiveBucket,
		KeyPrefix: cfg.Audit.ArchivePrefix,
		Retention: cfg.Audit.Retention,
	}, logger)
}

// buildRestorer creates the remote restore trigger when enabled
func buildRestorer(cfg *config.Config) (accounts.Restorer, error) {
	if !cfg.Restore.Enabled {
		return accounts.NopRestorer{}, nil
	}
	return accounts.NewHTTPRestorer(cfg.Restore.BaseURL, cfg.Restore.AuthToken, cfg.Restore.Timeout)
}
