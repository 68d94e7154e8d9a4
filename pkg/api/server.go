package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/eduledger/institute/pkg/httputil"
	"github.com/eduledger/institute/pkg/observability"
)

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
}

// ServerOption configures a Server
type ServerOption func(*serverOptions)

type serverOptions struct {
	logger  *observability.Logger
	metrics *observability.Metrics
	loc     *time.Location
}

// WithServerLogger sets the request logger
func WithServerLogger(logger *observability.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = logger }
}

// WithServerMetrics records HTTP metrics for every request
func WithServerMetrics(metrics *observability.Metrics) ServerOption {
	return func(o *serverOptions) { o.metrics = metrics }
}

// WithLocation sets the zone from and to dates are interpreted in
func WithLocation(loc *time.Location) ServerOption {
	return func(o *serverOptions) { o.loc = loc }
}

// NewServer creates a new API server
func NewServer(reporter Reporter, opts ...ServerOption) *Server {
	o := serverOptions{logger: observability.NopLogger(), loc: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{router: mux.NewRouter()}
	NewAnalyticsHandlers(reporter, o.loc).RegisterRoutes(s.router)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "not found")
	})

	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware(o.logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
	}
	if o.metrics != nil {
		middlewares = append([]func(http.Handler) http.Handler{observability.HTTPMetricsMiddleware(o.metrics)}, middlewares...)
	}
	s.handler = otelhttp.NewHandler(httputil.Chain(middlewares...)(s.router), "institute-api")
	return s
}

// Router returns the underlying router for additional registrations
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
