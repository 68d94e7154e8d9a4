package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Analytics query metrics
	AnalyticsQueriesTotal  *prometheus.CounterVec
	AnalyticsQueryDuration *prometheus.HistogramVec

	// Database metrics
	DBConnectionsOpen      prometheus.Gauge
	DBConnectionsInUse     prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge

	// Business metrics
	StudentsTotal        prometheus.Gauge
	CoursesTotal         prometheus.Gauge
	TrainersTotal        prometheus.Gauge
	LeadsTotal           prometheus.Gauge
	UnpaidInvoicesTotal  prometheus.Gauge
	GaugeRefreshFailures prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "institute_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "institute_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "institute_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		AnalyticsQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "institute_analytics_operations_total",
				Help: "Total number of analytics operations",
			},
			[]string{"operation", "status"},
		),
		AnalyticsQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "institute_analytics_operation_duration_seconds",
				Help:    "Analytics operation duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),

		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "institute_db_connections_open",
			Help: "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "institute_db_connections_in_use",
			Help: "Number of database connections in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "institute_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		DBConnectionsWaitCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "institute_db_connections_wait_count",
			Help: "Total number of connections waited for",
		}),

		StudentsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "institute_students_total",
			Help: "Number of registered students",
		}),
		CoursesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "institute_courses_total",
			Help: "Number of courses",
		}),
		TrainersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "institute_trainers_total",
			Help: "Number of trainers",
		}),
		LeadsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "institute_leads_total",
			Help: "Number of CRM leads",
		}),
		UnpaidInvoicesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "institute_unpaid_invoices_total",
			Help: "Number of invoices not yet paid",
		}),
		GaugeRefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "institute_gauge_refresh_failures_total",
			Help: "Number of failed business gauge refreshes",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AnalyticsQueriesTotal,
		m.AnalyticsQueryDuration,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.StudentsTotal,
		m.CoursesTotal,
		m.TrainersTotal,
		m.LeadsTotal,
		m.UnpaidInvoicesTotal,
		m.GaugeRefreshFailures,
	)

	return m
}

// ObserveAnalytics records the outcome and latency of one analytics operation
func (m *Metrics) ObserveAnalytics(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.AnalyticsQueriesTotal.WithLabelValues(operation, status).Inc()
	m.AnalyticsQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDBStats copies connection pool statistics into the database gauges
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
