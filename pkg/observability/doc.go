// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks and graceful shutdown.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("template_id", id).Info("template activated")
//
// Request-scoped loggers are derived from context:
//
//	observability.FromContext(ctx).WithError(err).Warn("audit write failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordTransition("activate", "success", elapsed)
//
// A nil *Metrics is valid, so components accept it as an optional dependency.
//
// # Tracing
//
// InitTracing installs a global OTLP/gRPC tracer provider; packages obtain
// tracers through otel.Tracer and never depend on the provider directly.
//
// # Health Checks
//
// HealthChecker serves /healthz (liveness) and /readyz (database and Redis).
package observability
