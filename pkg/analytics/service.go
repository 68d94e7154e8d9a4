package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eduledger/institute/pkg/observability"
)

// Sentinel errors returned by the analytics service
var (
	ErrInvalidMonths  = errors.New("months must be at least 1")
	ErrCourseNotFound = errors.New("course not found")
)

const tracerName = "github.com/eduledger/institute/pkg/analytics"

// ReportTables lists every table the reports read
var ReportTables = []string{
	"courses",
	"follow_ups",
	"invoices",
	"leads",
	"registration_courses",
	"schedules",
	"students",
	"trainers",
}

// Service provides analytics business logic
type Service struct {
	db       *sql.DB
	sb       squirrel.StatementBuilderType
	courses  CourseNameResolver
	currency string
	now      func() time.Time
	loc      *time.Location
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for monthly buckets
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone in which month boundaries are computed
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithCurrency sets the currency code used by formatted amounts
func WithCurrency(code string) Option {
	return func(s *Service) { s.currency = code }
}

// WithCourseResolver replaces the default batched course name lookup
func WithCourseResolver(r CourseNameResolver) Option {
	return func(s *Service) { s.courses = r }
}

// WithLogger sets the service logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables Prometheus instrumentation of each operation
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// NewService creates a new analytics service
func NewService(db *sql.DB, opts ...Option) *Service {
	s := &Service{
		db:       db,
		sb:       squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		currency: DefaultCurrency,
		now:      time.Now,
		loc:      time.Local,
		logger:   observability.NopLogger(),
		tracer:   observability.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.courses == nil {
		s.courses = NewBatchCourseResolver(db)
	}
	return s
}

// track starts a span for op and returns a func that finishes it, recording
// the outcome in metrics. Call it as defer done(&err).
func (s *Service) track(ctx context.Context, op string) (context.Context, func(*error)) {
	ctx, span := s.tracer.Start(ctx, "analytics."+op,
		trace.WithAttributes(attribute.String("analytics.operation", op)))
	start := time.Now()

	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.WithError(err).WithField("operation", op).Error("analytics query failed")
		}
		span.End()
		s.metrics.ObserveAnalytics(op, time.Since(start), err)
	}
}

func (s *Service) money(amount float64) string {
	return FormatCurrencyCode(s.currency, amount)
}

// queryRow builds q and scans its single row into dest
func (s *Service) queryRow(ctx context.Context, q squirrel.SelectBuilder, dest ...interface{}) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	return s.db.QueryRowContext(ctx, query, args...).Scan(dest...)
}

func (s *Service) query(ctx context.Context, q squirrel.SelectBuilder) (*sql.Rows, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return s.db.QueryContext(ctx, query, args...)
}

// count runs SELECT COUNT(*) FROM table, filtered on column when r is bounded
func (s *Service) count(ctx context.Context, table, column string, r DateRange) (int64, error) {
	q := s.sb.Select("COUNT(*)").From(table)
	if column != "" {
		q = r.apply(q, column)
	}
	var n int64
	if err := s.queryRow(ctx, q, &n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// sumInvoices returns the total invoice amount within r
func (s *Service) sumInvoices(ctx context.Context, r DateRange) (float64, error) {
	q := r.apply(s.sb.Select("COALESCE(SUM(amount), 0)").From("invoices"), "created_at")
	var total float64
	if err := s.queryRow(ctx, q, &total); err != nil {
		return 0, fmt.Errorf("failed to sum invoices: %w", err)
	}
	return total, nil
}
