package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eduledger/institute/pkg/observability"
)

// Recorder receives progress for the migration audit trail
type Recorder interface {
	RunStarted(runID string, dialect string, tables []string)
	TableStarted(table string)
	TableWarning(table, message string)
	TableFinished(result TableResult)
	RunFinished(report *Report)
}

type nopRecorder struct{}

func (nopRecorder) RunStarted(string, string, []string) {}
func (nopRecorder) TableStarted(string)                 {}
func (nopRecorder) TableWarning(string, string)         {}
func (nopRecorder) TableFinished(TableResult)           {}
func (nopRecorder) RunFinished(*Report)                 {}

// Migrator replicates tables from a Source into a target database
type Migrator struct {
	source       Source
	target       *sql.DB
	dialect      Dialect
	graph        *TableGraph
	batchSize    int
	tables       []string
	dryRun       bool
	verifyCounts bool
	discoverFKs  bool
	runID        string
	logger       *observability.Logger
	recorder     Recorder
	tracer       trace.Tracer
	now          func() time.Time
}

// Option configures a Migrator
type Option func(*Migrator)

// WithBatchSize sets the number of rows per INSERT
func WithBatchSize(n int) Option {
	return func(m *Migrator) { m.batchSize = n }
}

// WithTables restricts the run to the named tables
func WithTables(tables []string) Option {
	return func(m *Migrator) { m.tables = tables }
}

// WithDryRun plans every table without touching the target
func WithDryRun(dryRun bool) Option {
	return func(m *Migrator) { m.dryRun = dryRun }
}

// WithVerifyCounts compares target and source row counts after each copy
func WithVerifyCounts(verify bool) Option {
	return func(m *Migrator) { m.verifyCounts = verify }
}

// WithForeignKeyDiscovery merges source foreign keys into the table graph
func WithForeignKeyDiscovery(discover bool) Option {
	return func(m *Migrator) { m.discoverFKs = discover }
}

// WithRunID overrides the generated run identifier
func WithRunID(id string) Option {
	return func(m *Migrator) { m.runID = id }
}

// WithLogger sets the console logger
func WithLogger(logger *observability.Logger) Option {
	return func(m *Migrator) { m.logger = logger }
}

// WithRecorder sets the audit recorder
func WithRecorder(r Recorder) Option {
	return func(m *Migrator) { m.recorder = r }
}

// New creates a migrator. target may be nil for dry runs.
func New(source Source, target *sql.DB, dialect Dialect, graph *TableGraph, opts ...Option) *Migrator {
	m := &Migrator{
		source:       source,
		target:       target,
		dialect:      dialect,
		graph:        graph,
		batchSize:    DefaultBatchSize,
		verifyCounts: true,
		logger:       observability.NopLogger(),
		recorder:     nopRecorder{},
		tracer:       observability.Tracer("github.com/eduledger/institute/pkg/migrate"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.runID == "" {
		m.runID = uuid.NewString()
	}
	if m.graph == nil {
		m.graph = DefaultTableGraph()
	}
	return m
}

// RunID returns the identifier tagging this run's log lines
func (m *Migrator) RunID() string {
	return m.runID
}

// Run migrates every selected table in dependency order. Connection and
// planning failures abort the run and return an error. Failures inside a
// table are recorded in its TableResult and the run moves on.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	ctx = observability.WithRunID(ctx, m.runID)
	logger := m.logger.WithField("run_id", m.runID)

	if err := m.source.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to source: %w", err)
	}
	if !m.dryRun {
		if m.target == nil {
			return nil, fmt.Errorf("target database is required unless dry run")
		}
		if err := m.target.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to target: %w", err)
		}
	}

	if m.discoverFKs {
		fks, err := m.source.ForeignKeys(ctx)
		if err != nil {
			return nil, err
		}
		added, skipped := m.graph.MergeForeignKeys(fks)
		logger.WithFields(map[string]interface{}{
			"added":   added,
			"skipped": len(skipped),
		}).Info("merged foreign key edges into table graph")
	}

	order, err := m.graph.Order(m.tables)
	if err != nil {
		return nil, fmt.Errorf("failed to order tables: %w", err)
	}

	report := &Report{
		RunID:     m.runID,
		Dialect:   m.dialect.Name(),
		DryRun:    m.dryRun,
		StartedAt: m.now(),
	}
	m.recorder.RunStarted(m.runID, m.dialect.Name(), order)
	logger.WithFields(map[string]interface{}{
		"tables":  len(order),
		"dialect": m.dialect.Name(),
		"dry_run": m.dryRun,
	}).Info("migration started")

	copier := NewCopier(m.target, m.dialect, m.batchSize)
	for _, table := range order {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = m.now()
			m.recorder.RunFinished(report)
			return report, err
		}
		report.Tables = append(report.Tables, m.migrateTable(ctx, copier, table))
	}

	report.FinishedAt = m.now()
	m.recorder.RunFinished(report)
	logger.WithFields(map[string]interface{}{
		"succeeded": report.Succeeded(),
		"failed":    len(report.FailedTables()),
		"rows":      report.TotalRows(),
		"duration":  report.Duration().String(),
	}).Info("migration finished")
	return report, nil
}

func (m *Migrator) migrateTable(ctx context.Context, copier *Copier, table string) (res TableResult) {
	start := time.Now()
	res.Table = table
	logger := m.logger.WithField("run_id", m.runID).WithTable(table)

	ctx, span := m.tracer.Start(ctx, "migrate.table", trace.WithAttributes(
		attribute.String("migrate.table", table),
		attribute.Bool("migrate.dry_run", m.dryRun),
	))
	m.recorder.TableStarted(table)

	defer func() {
		if perr := observability.PanicError(logger, "migrate "+table, recover()); perr != nil {
			res.Err = perr
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			logger.WithError(res.Err).Error("table migration failed")
		} else {
			logger.WithFields(map[string]interface{}{
				"rows":    res.Rows,
				"batches": res.Batches,
			}).Info("table migrated")
		}
		span.SetAttributes(attribute.Int("migrate.rows", res.Rows))
		span.End()
		m.recorder.TableFinished(res)
	}()

	schema, err := m.source.DescribeTable(ctx, table)
	if err != nil {
		res.Err = err
		return res
	}
	res.Columns = len(schema.Columns)

	plan, err := BuildPlan(schema, m.dialect)
	if err != nil {
		res.Err = err
		return res
	}
	res.FallbackColumns = plan.FallbackColumns()
	res.Warnings = plan.Warnings
	res.Statements = plan.Statements(m.dialect)
	for _, w := range plan.Warnings {
		logger.Warn(w)
		m.recorder.TableWarning(table, w)
	}

	if m.dryRun {
		return res
	}

	for _, stmt := range res.Statements {
		if _, err := m.target.ExecContext(ctx, stmt); err != nil {
			res.Err = fmt.Errorf("failed to recreate %s: %w", table, err)
			return res
		}
	}

	rows, err := m.source.ReadRows(ctx, schema)
	if err != nil {
		res.Err = err
		return res
	}

	res.Batches, err = copier.Copy(ctx, plan, rows)
	if err != nil {
		res.Err = fmt.Errorf("failed to copy %s: %w", table, err)
		return res
	}
	res.Rows = len(rows)

	if plan.Identity != "" {
		if res.NextIdentity, err = copier.ContinueIdentity(ctx, plan, rows); err != nil {
			res.Err = err
			return res
		}
	}

	if m.verifyCounts {
		if err := copier.Verify(ctx, table, len(rows)); err != nil {
			res.Err = err
			return res
		}
	}
	return res
}
