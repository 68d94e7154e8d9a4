package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Health states, worst last
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus is the readiness document served on /health
type HealthStatus struct {
	Status    string                      `json:"status"`
	Timestamp time.Time                   `json:"timestamp"`
	Version   string                      `json:"version,omitempty"`
	Checks    map[string]DependencyStatus `json:"checks,omitempty"`
}

// DependencyStatus is the outcome of one readiness check
type DependencyStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMs int64     `json:"latencyMs"`
	CheckedAt time.Time `json:"checkedAt"`
}

// HealthChecker reports liveness and readiness of the reporting database.
// When report tables are given, readiness also confirms they exist so a
// half-migrated database shows as degraded instead of failing per request.
type HealthChecker struct {
	db      *sql.DB
	version string
	tables  []string
	now     func() time.Time
}

// NewHealthChecker creates a checker for db. tables lists relations the
// reports read from.
func NewHealthChecker(db *sql.DB, version string, tables ...string) *HealthChecker {
	return &HealthChecker{
		db:      db,
		version: version,
		tables:  tables,
		now:     time.Now,
	}
}

// Liveness always returns 200 while the process is serving
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthStatus{
		Status:    StatusHealthy,
		Timestamp: h.now(),
		Version:   h.version,
	})
}

// Readiness returns 503 when the database is unreachable
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

// Check runs the database and schema checks. The overall status is the
// worst individual status.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: h.now(),
		Version:   h.version,
		Checks:    make(map[string]DependencyStatus),
	}
	if h.db == nil {
		return status
	}

	db := h.timed(func(d *DependencyStatus) { h.checkDatabase(ctx, d) })
	status.record("database", db)

	if db.Status != StatusUnhealthy && len(h.tables) > 0 {
		status.record("schema", h.timed(func(d *DependencyStatus) { h.checkTables(ctx, d) }))
	}
	return status
}

func (s *HealthStatus) record(name string, d DependencyStatus) {
	s.Checks[name] = d
	if severity(d.Status) > severity(s.Status) {
		s.Status = d.Status
	}
}

func severity(status string) int {
	switch status {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	}
	return 0
}

func (h *HealthChecker) timed(check func(*DependencyStatus)) DependencyStatus {
	d := DependencyStatus{Status: StatusHealthy, CheckedAt: h.now()}
	start := time.Now()
	check(&d)
	d.LatencyMs = time.Since(start).Milliseconds()
	return d
}

func (h *HealthChecker) checkDatabase(ctx context.Context, d *DependencyStatus) {
	if err := h.db.PingContext(ctx); err != nil {
		d.Status = StatusUnhealthy
		d.Message = err.Error()
		return
	}

	var one int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		d.Status = StatusUnhealthy
		d.Message = "query failed: " + err.Error()
		return
	}

	stats := h.db.Stats()
	if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
		d.Status = StatusDegraded
		d.Message = "connection pool exhausted"
	}
}

func (h *HealthChecker) checkTables(ctx context.Context, d *DependencyStatus) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT t FROM unnest($1::text[]) AS t WHERE to_regclass(t) IS NULL", pq.Array(h.tables))
	if err != nil {
		d.Status = StatusDegraded
		d.Message = "schema check failed: " + err.Error()
		return
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			d.Status = StatusDegraded
			d.Message = "schema check failed: " + err.Error()
			return
		}
		missing = append(missing, table)
	}
	if err := rows.Err(); err != nil {
		d.Status = StatusDegraded
		d.Message = "schema check failed: " + err.Error()
		return
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		d.Status = StatusDegraded
		d.Message = "missing tables: " + strings.Join(missing, ", ")
	}
}

func writeHealth(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
