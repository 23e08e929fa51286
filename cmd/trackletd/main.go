package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tracklet/tracklet/pkg/accounts"
	"github.com/tracklet/tracklet/pkg/api"
	"github.com/tracklet/tracklet/pkg/config"
	"github.com/tracklet/tracklet/pkg/observability"
	"github.com/tracklet/tracklet/pkg/rbac"
	"github.com/tracklet/tracklet/pkg/session"
)

func main() {
	startup := logrus.New()
	startup.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		startup.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(observability.ParseLevel(cfg.Observability.LogLevel), os.Stdout)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdowner := observability.NewShutdowner(cfg.Server.ShutdownTimeout, logger)

	traceShutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	})
	if err != nil {
		startup.Fatalf("Failed to initialize tracing: %v", err)
	}
	shutdowner.Register("tracing", traceShutdown)

	st, err := buildStores(ctx, cfg, shutdowner)
	if err != nil {
		startup.Fatalf("Failed to initialize stores: %v", err)
	}
	startup.Infof("Stores initialized (kv=%s users=%s)", cfg.Stores.KVBackend, cfg.Stores.UserBackend)

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		startup.Fatalf("Failed to initialize identity provider: %v", err)
	}
	startup.Infof("Identity provider ready (%s)", cfg.Provider.Type)

	auditor, dbSink, err := buildAuditTrail(cfg, logger, st.auditDB, st.auditDialect)
	if err != nil {
		startup.Fatalf("Failed to initialize audit trail: %v", err)
	}
	shutdowner.Register("audit", func(context.Context) error { return auditor.Close() })

	restorer, err := buildRestorer(cfg)
	if err != nil {
		startup.Fatalf("Failed to initialize restore client: %v", err)
	}

	sessions := session.NewManager(st.kv, session.ManagerOptions{
		Logger:  logger,
		Metrics: metrics,
	})
	evaluator := rbac.NewEvaluator(rbac.NewRoleStore(st.kv), rbac.EvaluatorOptions{
		Logger:  logger,
		Metrics: metrics,
		Auditor: auditor,
	})
	accountsSvc := accounts.NewService(provider, st.users, sessions, accounts.ServiceOptions{
		Restorer: restorer,
		Logger:   logger,
		Metrics:  metrics,
		Auditor:  auditor,
	})

	if cfg.Audit.ArchiveEnabled {
		archiver, err := buildArchiver(ctx, cfg, dbSink, logger)
		if err != nil {
			startup.Fatalf("Failed to initialize audit archiver: %v", err)
		}
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Audit.ArchiveSchedule, func() {
			if err := archiver.Run(context.Background()); err != nil {
				logger.WithError(err).Error("audit archival run failed")
			}
		}); err != nil {
			startup.Fatalf("Invalid archive schedule %q: %v", cfg.Audit.ArchiveSchedule, err)
		}
		scheduler.Start()
		shutdowner.Register("archive-scheduler", func(ctx context.Context) error {
			select {
			case <-scheduler.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		startup.Infof("Audit archival scheduled (%s, bucket=%s)", cfg.Audit.ArchiveSchedule, cfg.Audit.ArchiveBucket)
	}

	server := api.NewServer(accountsSvc, evaluator, sessions, api.Options{
		Logger:  logger,
		Metrics: metrics,
		Tracing: cfg.Observability.OTelEnabled,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux(st, metrics),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		startup.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		startup.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(stopCtx); err != nil {
			logger.WithError(err).Warn("API server shutdown failed")
		}
		if err := healthServer.Shutdown(stopCtx); err != nil {
			logger.WithError(err).Warn("health server shutdown failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
	}
	if err := shutdowner.Shutdown(); err != nil {
		logger.WithError(err).Error("cleanup finished with errors")
	}
	startup.Info("Shutdown complete")
}

// healthMux serves liveness, readiness, and metrics on the probe port
func healthMux(st *stores, metrics *observability.Metrics) http.Handler {
	health := observability.NewHealth(5 * time.Second)
	if st.auditDB != nil {
		db := st.auditDB
		health.Register(observability.CheckerFunc{
			CheckerName: "database",
			Fn:          db.PingContext,
		})
	}
	health.Register(observability.CheckerFunc{
		CheckerName: "kvstore",
		Fn: func(ctx context.Context) error {
			return st.kv.SetString(ctx, "health:probe", time.Now().UTC().Format(time.RFC3339))
		},
	})
	health.Register(observability.CheckerFunc{
		CheckerName: "userstore",
		Fn: func(ctx context.Context) error {
			_, err := st.users.Get(ctx, "health-probe")
			return err
		},
	})

	mux := http.NewServeMux()
	mux.Handle("/healthz", health.LivenessHandler())
	mux.Handle("/readyz", health.ReadinessHandler())
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}
	return mux
}
