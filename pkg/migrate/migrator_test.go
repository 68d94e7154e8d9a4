package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTable struct {
	schema *TableSchema
	rows   [][]interface{}
}

// memSource serves pre-normalised rows from memory
type memSource struct {
	tables      map[string]memTable
	fks         []ForeignKey
	pingErr     error
	describeErr map[string]error
}

func (s *memSource) Ping(context.Context) error { return s.pingErr }

func (s *memSource) DescribeTable(_ context.Context, table string) (*TableSchema, error) {
	if err := s.describeErr[table]; err != nil {
		return nil, err
	}
	t, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return t.schema, nil
}

func (s *memSource) ForeignKeys(context.Context) ([]ForeignKey, error) { return s.fks, nil }

func (s *memSource) ReadRows(_ context.Context, schema *TableSchema) ([][]interface{}, error) {
	return s.tables[schema.Name].rows, nil
}

type recordedEvent struct {
	kind, table string
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
	report *Report
}

func (r *fakeRecorder) add(kind, table string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{kind, table})
}

func (r *fakeRecorder) RunStarted(string, string, []string) { r.add("run_started", "") }
func (r *fakeRecorder) TableStarted(table string)           { r.add("table_started", table) }
func (r *fakeRecorder) TableWarning(table, _ string)        { r.add("warning", table) }
func (r *fakeRecorder) TableFinished(res TableResult)       { r.add("table_finished", res.Table) }
func (r *fakeRecorder) RunFinished(report *Report) {
	r.add("run_finished", "")
	r.report = report
}

func instituteSource() *memSource {
	return &memSource{tables: map[string]memTable{
		"courses": {
			schema: &TableSchema{
				Name: "courses",
				Columns: []Column{
					{Name: "id", DataType: "integer", Default: strp("nextval('courses_id_seq'::regclass)")},
					{Name: "name", DataType: "character varying", Length: int64p(120)},
					{Name: "fee_online", DataType: "numeric", Nullable: true, Precision: int64p(10), Scale: int64p(2)},
					{Name: "is_active", DataType: "boolean", Default: strp("true")},
					{Name: "levels", DataType: "ARRAY", Nullable: true},
				},
				PrimaryKey: []string{"id"},
			},
			rows: [][]interface{}{
				{int64(1), "IELTS Preparation", "2500.00", true, `["B1","B2"]`},
				{int64(2), "Arabic for Beginners", nil, true, nil},
				{int64(7), "Business English", "1800.50", false, `[]`},
			},
		},
		"students": {
			schema: &TableSchema{
				Name: "students",
				Columns: []Column{
					{Name: "id", DataType: "bigint", IsIdentity: true},
					{Name: "course_id", DataType: "integer", Nullable: true},
					{Name: "full_name", DataType: "text"},
					{Name: "payment_status", DataType: "character varying", Nullable: true, Default: strp("'pending'::character varying")},
				},
				PrimaryKey: []string{"id"},
			},
			rows: [][]interface{}{
				{int64(10), int64(1), "Aisha Rahman", "paid"},
				{int64(11), int64(7), "Omar Haddad", nil},
			},
		},
	}}
}

func instituteGraph() *TableGraph {
	g := NewTableGraph()
	g.AddTable("courses")
	g.AddTable("students", "courses")
	return g
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
	return n
}

func TestMigrator_SQLite(t *testing.T) {
	target := openSQLite(t)
	rec := &fakeRecorder{}

	m := New(instituteSource(), target, SQLite{}, instituteGraph(),
		WithBatchSize(2), WithRecorder(rec), WithRunID("run-1"))
	report, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "sqlite", report.Dialect)
	assert.Equal(t, 2, report.Succeeded())
	assert.Empty(t, report.FailedTables())
	assert.Equal(t, 5, report.TotalRows())

	require.Len(t, report.Tables, 2)
	courses := report.Tables[0]
	assert.Equal(t, "courses", courses.Table)
	assert.Equal(t, 2, courses.Batches)
	assert.Equal(t, int64(8), courses.NextIdentity)
	assert.Equal(t, int64(12), report.Tables[1].NextIdentity)

	assert.Equal(t, 3, countRows(t, target, "courses"))
	assert.Equal(t, 2, countRows(t, target, "students"))

	var levels sql.NullString
	var status string
	require.NoError(t, target.QueryRow(`SELECT levels FROM courses WHERE id = 1`).Scan(&levels))
	assert.Equal(t, `["B1","B2"]`, levels.String)
	require.NoError(t, target.QueryRow(`SELECT COALESCE(payment_status, 'none') FROM students WHERE id = 11`).Scan(&status))
	assert.Equal(t, "none", status)

	assert.Equal(t, []recordedEvent{
		{"run_started", ""},
		{"table_started", "courses"},
		{"table_finished", "courses"},
		{"table_started", "students"},
		{"table_finished", "students"},
		{"run_finished", ""},
	}, rec.events)
	assert.Same(t, report, rec.report)
}

func TestMigrator_IdentityContinuesAfterMax(t *testing.T) {
	target := openSQLite(t)

	_, err := New(instituteSource(), target, SQLite{}, instituteGraph()).Run(context.Background())
	require.NoError(t, err)

	res, err := target.Exec(`INSERT INTO courses (name) VALUES ('Public Speaking')`)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)

	var active bool
	require.NoError(t, target.QueryRow(`SELECT is_active FROM courses WHERE id = ?`, id).Scan(&active))
	assert.True(t, active, "boolean default carried over")
}

func TestMigrator_Idempotent(t *testing.T) {
	target := openSQLite(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		report, err := New(instituteSource(), target, SQLite{}, instituteGraph()).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Succeeded())
	}

	assert.Equal(t, 3, countRows(t, target, "courses"))
	assert.Equal(t, 2, countRows(t, target, "students"))
}

func TestMigrator_TableFailureDoesNotStopRun(t *testing.T) {
	target := openSQLite(t)
	source := instituteSource()
	source.describeErr = map[string]error{"courses": errors.New("relation locked")}

	report, err := New(source, target, SQLite{}, instituteGraph()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"courses"}, report.FailedTables())
	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, 2, countRows(t, target, "students"))
}

func TestMigrator_DryRun(t *testing.T) {
	rec := &fakeRecorder{}
	report, err := New(instituteSource(), nil, MySQL{}, instituteGraph(),
		WithDryRun(true), WithRecorder(rec)).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Zero(t, report.TotalRows())
	require.Len(t, report.Tables, 2)
	for _, res := range report.Tables {
		require.Len(t, res.Statements, 2, res.Table)
		assert.Contains(t, res.Statements[1], "CREATE TABLE")
	}
	assert.Contains(t, report.Tables[0].Statements[1], "`levels` JSON")
}

func TestMigrator_OnlySelectedTables(t *testing.T) {
	target := openSQLite(t)

	report, err := New(instituteSource(), target, SQLite{}, instituteGraph(),
		WithTables([]string{"courses"})).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Tables, 1)
	assert.Equal(t, "courses", report.Tables[0].Table)
}

func TestMigrator_FatalErrors(t *testing.T) {
	ctx := context.Background()

	source := instituteSource()
	source.pingErr = errors.New("connection refused")
	report, err := New(source, openSQLite(t), SQLite{}, instituteGraph()).Run(ctx)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "source")

	_, err = New(instituteSource(), nil, SQLite{}, instituteGraph()).Run(ctx)
	assert.Error(t, err, "a real run needs a target")

	_, err = New(instituteSource(), openSQLite(t), SQLite{}, instituteGraph(),
		WithTables([]string{"trainers"})).Run(ctx)
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestMigrator_ForeignKeyDiscovery(t *testing.T) {
	source := instituteSource()
	source.fks = []ForeignKey{{Table: "students", Column: "course_id", RefTable: "courses", RefColumn: "id"}}

	graph := NewTableGraph()
	graph.AddTable("students")
	graph.AddTable("courses")

	report, err := New(source, nil, SQLite{}, graph,
		WithDryRun(true), WithForeignKeyDiscovery(true)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"courses"}, graph.Parents("students"))
	require.Len(t, report.Tables, 2)
	assert.Equal(t, "courses", report.Tables[0].Table)
	assert.Equal(t, "students", report.Tables[1].Table)
}

func TestMigrator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(instituteSource(), nil, SQLite{}, instituteGraph(), WithDryRun(true)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Tables)
}

func TestNew_Defaults(t *testing.T) {
	m := New(instituteSource(), nil, SQLite{}, nil)
	assert.NotEmpty(t, m.RunID())
	assert.True(t, m.graph.Has("registration_courses"))
	assert.True(t, m.verifyCounts)
	assert.Equal(t, DefaultBatchSize, m.batchSize)
}
