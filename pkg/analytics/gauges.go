package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eduledger/institute/pkg/observability"
)

// GaugeRefresher copies live entity counts into the Prometheus business
// gauges. The gauges are scraped by monitoring only; reports never read them.
type GaugeRefresher struct {
	db      *sql.DB
	metrics *observability.Metrics
	logger  *observability.Logger
	timeout time.Duration
}

// NewGaugeRefresher creates a refresher for the given metrics
func NewGaugeRefresher(db *sql.DB, metrics *observability.Metrics, logger *observability.Logger) *GaugeRefresher {
	return &GaugeRefresher{
		db:      db,
		metrics: metrics,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// Refresh recomputes every gauge. It stops at the first failing query.
func (g *GaugeRefresher) Refresh(ctx context.Context) error {
	gauges := []struct {
		gauge prometheus.Gauge
		query string
	}{
		{g.metrics.StudentsTotal, "SELECT COUNT(*) FROM students"},
		{g.metrics.CoursesTotal, "SELECT COUNT(*) FROM courses"},
		{g.metrics.TrainersTotal, "SELECT COUNT(*) FROM trainers"},
		{g.metrics.LeadsTotal, "SELECT COUNT(*) FROM leads"},
		{g.metrics.UnpaidInvoicesTotal, "SELECT COUNT(*) FROM invoices WHERE COALESCE(LOWER(status), '') <> 'paid'"},
	}

	for _, gg := range gauges {
		var n int64
		if err := g.db.QueryRowContext(ctx, gg.query).Scan(&n); err != nil {
			g.metrics.GaugeRefreshFailures.Inc()
			return fmt.Errorf("failed to refresh gauge (%s): %w", gg.query, err)
		}
		gg.gauge.Set(float64(n))
	}

	g.metrics.RecordDBStats(g.db.Stats())
	return nil
}

// Run refreshes the gauges once. It satisfies cron.Job.
func (g *GaugeRefresher) Run() {
	defer observability.RecoverPanic(g.logger, "gauge refresh")

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	start := time.Now()
	if err := g.Refresh(ctx); err != nil {
		g.logger.WithError(err).Error("gauge refresh failed")
		return
	}
	g.logger.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("business gauges refreshed")
}
