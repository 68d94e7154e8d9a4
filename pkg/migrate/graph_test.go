package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableGraph_TopologicalSort(t *testing.T) {
	graph := DefaultTableGraph()

	order, err := graph.TopologicalSort()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"campaigns", "courses", "users", "students", "certificates", "employees",
		"leads", "follow_ups", "invoices", "payroll", "quotations",
		"registration_courses", "trainers", "schedules",
	}, order)

	assertParentsFirst(t, graph, order)
}

func assertParentsFirst(t *testing.T, graph *TableGraph, order []string) {
	t.Helper()
	pos := make(map[string]int, len(order))
	for i, table := range order {
		pos[table] = i
	}
	for _, table := range order {
		for _, parent := range graph.Parents(table) {
			assert.Less(t, pos[parent], pos[table], "%s must precede %s", parent, table)
		}
	}
}

func TestTopologicalSort_Deterministic(t *testing.T) {
	first, err := DefaultTableGraph().TopologicalSort()
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := DefaultTableGraph().TopologicalSort()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTopologicalSort_Cycle(t *testing.T) {
	graph := NewTableGraph()
	graph.AddTable("a", "b")
	graph.AddTable("b", "c")
	graph.AddTable("c", "a")

	_, err := graph.TopologicalSort()
	require.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestTopologicalSort_UndeclaredParent(t *testing.T) {
	graph := NewTableGraph()
	graph.AddTable("invoices", "students")

	_, err := graph.TopologicalSort()
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestTableGraph_SelfReferenceIgnored(t *testing.T) {
	graph := NewTableGraph()
	graph.AddTable("users", "users")
	assert.Empty(t, graph.Parents("users"))
	assert.False(t, graph.AddEdge("users", "users"))
}

func TestTableGraph_Order(t *testing.T) {
	graph := DefaultTableGraph()

	order, err := graph.Order([]string{"invoices", "courses", "students"})
	require.NoError(t, err)
	assert.Equal(t, []string{"courses", "students", "invoices"}, order)

	_, err = graph.Order([]string{"nope"})
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestTableGraph_MergeForeignKeys(t *testing.T) {
	graph := DefaultTableGraph()

	added, skipped := graph.MergeForeignKeys([]ForeignKey{
		{Table: "invoices", Column: "course_id", RefTable: "courses", RefColumn: "id"},
		{Table: "invoices", Column: "student_id", RefTable: "students", RefColumn: "id"},
		{Table: "audit_log", Column: "user_id", RefTable: "users", RefColumn: "id"},
		{Table: "users", Column: "manager_id", RefTable: "users", RefColumn: "id"},
	})

	assert.Equal(t, 1, added)
	require.Len(t, skipped, 1)
	assert.Equal(t, "audit_log", skipped[0].Table)
	assert.Equal(t, []string{"courses", "students"}, graph.Parents("invoices"))
}

func TestLoadTableGraph(t *testing.T) {
	doc := `
tables:
  - name: courses
  - name: students
    depends_on: [courses]
  - name: invoices
    depends_on:
      - students
`
	graph, err := LoadTableGraph(strings.NewReader(doc))
	require.NoError(t, err)

	order, err := graph.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"courses", "students", "invoices"}, order)
}

func TestLoadTableGraph_Invalid(t *testing.T) {
	_, err := LoadTableGraph(strings.NewReader("tables: []"))
	assert.Error(t, err)

	_, err = LoadTableGraph(strings.NewReader("tables:\n  - depends_on: [x]\n"))
	assert.Error(t, err)

	_, err = LoadTableGraph(strings.NewReader("tables: {"))
	assert.Error(t, err)
}

func TestLoadTableGraphFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables:\n  - name: users\n"), 0o600))

	graph, err := LoadTableGraphFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, graph.Tables())

	_, err = LoadTableGraphFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
