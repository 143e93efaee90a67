package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/api"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/audit"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/config"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

const serviceName = "dpp-templates"

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	migrateOnly := flag.Bool("migrate", false, "Apply database migrations and exit")
	storage := flag.String("store", "", "Storage backend override: sql or memory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil && *storage != "" {
		cfg.Database.Storage = *storage
		if *storage == config.StorageMemory {
			cfg.Audit.Database = false
		}
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).WithField("service", serviceName)
	if err := run(cfg, logger, *migrateOnly); err != nil {
		logger.WithError(err).Error("Service terminated")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger, migrateOnly bool) error {
	ctx := context.Background()

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	deps, err := openDependencies(ctx, cfg, logger, metrics, migrateOnly)
	if err != nil {
		return err
	}
	if migrateOnly {
		logger.Info("Migrations applied")
		return deps.close()
	}

	keys, err := loadKeyStrategy(cfg.Templates.KeyTranslationsFile)
	if err != nil {
		deps.close()
		return err
	}

	auditLogger, auditDB, err := buildAuditLogger(cfg, deps, logger)
	if err != nil {
		deps.close()
		return err
	}

	svc := templates.NewService(deps.templates, deps.checker,
		templates.WithAuditSink(audit.NewRecorder(auditLogger)),
		templates.WithKeyStrategy(keys),
		templates.WithLogger(logger),
		templates.WithMetrics(metrics),
		templates.WithAuditTimeout(cfg.Audit.Timeout),
	)

	reporter, err := templates.StartStatusReporter(svc, cfg.Templates.StatusSchedule)
	if err != nil {
		deps.close()
		return err
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	opts := api.Options{
		Logger:    logger,
		Metrics:   metrics,
		RateLimit: buildRateLimit(workerCtx, cfg, deps, logger),
	}
	// The audit API needs a searchable trail
	if auditDB != nil {
		opts.Registrars = append(opts.Registrars, audit.NewHandlers(auditDB, deps.checker))
	}
	server := api.NewServer(svc, deps.checker, opts)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(server, serviceName),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(deps.db, deps.redis, cfg.Observability.OTelServiceVersion))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		stopWorkers()
		<-reporter.Stop().Done()
		if err := svc.WaitForAudit(ctx); err != nil {
			return fmt.Errorf("pending audit records: %w", err)
		}
		if err := auditLogger.Close(); err != nil {
			return fmt.Errorf("failed to close audit logger: %w", err)
		}
		if err := deps.close(); err != nil {
			return err
		}
		return observability.ShutdownTracing(ctx, tp, logger)
	})

	errCh := make(chan error, 2)
	for _, srv := range []*http.Server{apiServer, healthServer} {
		go func(srv *http.Server) {
			logger.WithField("addr", srv.Addr).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	sigCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := <-errCh; err != nil {
			logger.WithError(err).Error("HTTP server failed")
			cancel()
		}
	}()

	return shutdown.WaitForSignal(sigCtx)
}
