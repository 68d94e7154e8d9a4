package migrate

import (
	"errors"
	"time"
)

// Sentinel errors returned by the migrator
var (
	ErrCycle          = errors.New("table dependency cycle")
	ErrUnknownTable   = errors.New("unknown table")
	ErrTableNotFound  = errors.New("table not found in source schema")
	ErrUnknownDialect = errors.New("unknown target dialect")
	ErrCountMismatch  = errors.New("target row count does not match source")
)

// Column describes one source column as reported by information_schema
type Column struct {
	Name       string
	DataType   string
	Nullable   bool
	Default    *string
	IsIdentity bool
	Length     *int64
	Precision  *int64
	Scale      *int64
}

// TableSchema is the introspected shape of a source table
type TableSchema struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
}

// Column returns the named column
func (t *TableSchema) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns column names in ordinal order
func (t *TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ForeignKey is a single-column reference discovered in the source catalog
type ForeignKey struct {
	Table     string
	Column    string
	RefTable  string
	RefColumn string
}

// TableResult records the outcome of migrating one table
type TableResult struct {
	Table           string
	Columns         int
	Rows            int
	Batches         int
	NextIdentity    int64
	FallbackColumns []string
	Warnings        []string
	Statements      []string
	Duration        time.Duration
	Err             error
}

// Failed reports whether the table could not be migrated
func (r TableResult) Failed() bool {
	return r.Err != nil
}

// Report summarises a migration run
type Report struct {
	RunID      string
	Dialect    string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Tables     []TableResult
}

// Succeeded returns the number of tables migrated without error
func (r *Report) Succeeded() int {
	n := 0
	for _, t := range r.Tables {
		if !t.Failed() {
			n++
		}
	}
	return n
}

// FailedTables returns the names of tables that failed, in run order
func (r *Report) FailedTables() []string {
	var failed []string
	for _, t := range r.Tables {
		if t.Failed() {
			failed = append(failed, t.Table)
		}
	}
	return failed
}

// TotalRows returns the number of rows copied across all tables
func (r *Report) TotalRows() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Rows
	}
	return n
}

// Duration returns the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
