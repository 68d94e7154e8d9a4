package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/eduledger/institute/pkg/analytics"
	"github.com/eduledger/institute/pkg/api"
	"github.com/eduledger/institute/pkg/config"
	"github.com/eduledger/institute/pkg/observability"
)

var version = "dev"

var refreshOnStart = flag.Bool("refresh-on-start", true, "Refresh the business gauges once before serving")

func main() {
	flag.Parse()

	cfg, err := config.LoadAPIConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialise OpenTelemetry")
		os.Exit(1)
	}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Analytics.Timezone)
	if err != nil {
		logger.WithError(err).Error("Failed to load timezone")
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	opts := []analytics.Option{
		analytics.WithLocation(loc),
		analytics.WithCurrency(cfg.Analytics.Currency),
		analytics.WithLogger(logger),
		analytics.WithMetrics(metrics),
	}
	if cfg.Analytics.CourseLookup == config.CourseLookupPerGroup {
		opts = append(opts, analytics.WithCourseResolver(analytics.NewPerGroupCourseResolver(db)))
	}
	service := analytics.NewService(db, opts...)

	scheduler := cron.New()
	if metrics != nil {
		refresher := analytics.NewGaugeRefresher(db, metrics, logger)
		if _, err := scheduler.AddJob(cfg.Analytics.GaugeSchedule, refresher); err != nil {
			logger.WithError(err).Error("Failed to schedule gauge refresh")
			os.Exit(1)
		}
		if *refreshOnStart {
			refresher.Run()
		}
	}
	scheduler.Start()

	serverOpts := []api.ServerOption{
		api.WithServerLogger(logger),
		api.WithLocation(loc),
	}
	if metrics != nil {
		serverOpts = append(serverOpts, api.WithServerMetrics(metrics))
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewServer(service, serverOpts...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, version, analytics.ReportTables...))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      healthMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(otelProviders.Shutdown)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return db.Close()
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdown.RegisterServer(apiServer)
	shutdown.RegisterServer(healthServer)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{apiServer, healthServer} {
		srv := srv
		eg.Go(func() error {
			logger.WithField("addr", srv.Addr).Info("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	eg.Go(func() error {
		return shutdown.WaitForSignal(egCtx)
	})

	logger.WithFields(map[string]interface{}{
		"version":       version,
		"timezone":      loc.String(),
		"currency":      cfg.Analytics.Currency,
		"course_lookup": cfg.Analytics.CourseLookup,
	}).Info("institute analytics API started")

	if err := eg.Wait(); err != nil {
		logger.WithError(err).Error("server stopped with error")
		os.Exit(1)
	}
	logger.Info("institute analytics API stopped")
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
