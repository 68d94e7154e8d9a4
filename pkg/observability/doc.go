// Package observability provides structured logging, Prometheus metrics, health checks,
// graceful shutdown and OpenTelemetry tracing for the institute services.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithTable("students").Infof("copied %d rows", n)
//
// Request- and run-scoped loggers travel through the context:
//
//	ctx = observability.WithLogger(ctx, logger)
//	ctx = observability.WithRunID(ctx, runID)
//	observability.FromContext(ctx).Warn("fallback type used")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveAnalytics("dashboard", time.Since(start), err)
//	metrics.StudentsTotal.Set(float64(count))
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, version, "students", "invoices")
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
package observability
