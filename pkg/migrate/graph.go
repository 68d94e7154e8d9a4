package migrate

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TableGraph declares which tables must be migrated before which. An edge
// child -> parent means child holds a foreign key into parent.
type TableGraph struct {
	parents map[string][]string
}

// NewTableGraph creates an empty graph
func NewTableGraph() *TableGraph {
	return &TableGraph{parents: make(map[string][]string)}
}

// DefaultTableGraph returns the institute schema's tables and their parents
func DefaultTableGraph() *TableGraph {
	g := NewTableGraph()
	g.AddTable("users")
	g.AddTable("courses")
	g.AddTable("trainers")
	g.AddTable("campaigns")
	g.AddTable("employees")
	g.AddTable("students", "users", "courses")
	g.AddTable("registration_courses", "students", "courses")
	g.AddTable("invoices", "students")
	g.AddTable("schedules", "courses", "trainers")
	g.AddTable("certificates", "students", "courses")
	g.AddTable("leads", "campaigns", "users")
	g.AddTable("follow_ups", "leads", "users")
	g.AddTable("quotations", "leads")
	g.AddTable("payroll", "employees")
	return g
}

// AddTable declares table and its parents. Declaring a table twice merges
// the parent lists.
func (g *TableGraph) AddTable(table string, dependsOn ...string) {
	if _, ok := g.parents[table]; !ok {
		g.parents[table] = nil
	}
	for _, parent := range dependsOn {
		g.AddEdge(table, parent)
	}
}

// AddEdge records that child depends on parent. Self references and
// duplicates are ignored; it reports whether the edge was new.
func (g *TableGraph) AddEdge(child, parent string) bool {
	if child == parent {
		return false
	}
	for _, p := range g.parents[child] {
		if p == parent {
			return false
		}
	}
	g.parents[child] = append(g.parents[child], parent)
	return true
}

// Has reports whether table is declared
func (g *TableGraph) Has(table string) bool {
	_, ok := g.parents[table]
	return ok
}

// Tables returns all declared tables in alphabetical order
func (g *TableGraph) Tables() []string {
	tables := make([]string, 0, len(g.parents))
	for t := range g.parents {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// Parents returns the direct parents of table in alphabetical order
func (g *TableGraph) Parents(table string) []string {
	parents := append([]string(nil), g.parents[table]...)
	sort.Strings(parents)
	return parents
}

// TopologicalSort orders tables parents first. Independent tables are
// visited alphabetically so the order is stable across runs.
func (g *TableGraph) TopologicalSort() ([]string, error) {
	for _, table := range g.Tables() {
		for _, parent := range g.parents[table] {
			if !g.Has(parent) {
				return nil, fmt.Errorf("%w: %s depends on undeclared table %s", ErrUnknownTable, table, parent)
			}
		}
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)
	result := make([]string, 0, len(g.parents))

	var visit func(string) error
	visit = func(table string) error {
		if recStack[table] {
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(append(cycleFrom(path, table), table), " -> "))
		}
		if visited[table] {
			return nil
		}

		visited[table] = true
		recStack[table] = true
		path = append(path, table)

		// Parents first
		for _, parent := range g.Parents(table) {
			if err := visit(parent); err != nil {
				return err
			}
		}

		recStack[table] = false
		path = path[:len(path)-1]
		result = append(result, table)
		return nil
	}

	for _, table := range g.Tables() {
		if err := visit(table); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// cycleFrom returns the suffix of path starting at table
func cycleFrom(path []string, table string) []string {
	for i, p := range path {
		if p == table {
			return append([]string(nil), path[i:]...)
		}
	}
	return path
}

// Order returns the sorted order restricted to only. An empty only selects
// every table. Names not declared in the graph are rejected.
func (g *TableGraph) Order(only []string) ([]string, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	if len(only) == 0 {
		return order, nil
	}

	want := make(map[string]bool, len(only))
	for _, t := range only {
		if !g.Has(t) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTable, t)
		}
		want[t] = true
	}

	filtered := make([]string, 0, len(want))
	for _, t := range order {
		if want[t] {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// MergeForeignKeys adds an edge for every foreign key between declared
// tables and returns the number of new edges. Keys touching undeclared
// tables are returned in skipped.
func (g *TableGraph) MergeForeignKeys(fks []ForeignKey) (added int, skipped []ForeignKey) {
	for _, fk := range fks {
		if !g.Has(fk.Table) || !g.Has(fk.RefTable) {
			skipped = append(skipped, fk)
			continue
		}
		if g.AddEdge(fk.Table, fk.RefTable) {
			added++
		}
	}
	return added, skipped
}

// graphFile is the YAML layout of a table graph:
//
//	tables:
//	  - name: students
//	    depends_on: [users, courses]
type graphFile struct {
	Tables []struct {
		Name      string   `yaml:"name"`
		DependsOn []string `yaml:"depends_on"`
	} `yaml:"tables"`
}

// LoadTableGraph reads a YAML table graph
func LoadTableGraph(r io.Reader) (*TableGraph, error) {
	var f graphFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode table graph: %w", err)
	}
	if len(f.Tables) == 0 {
		return nil, fmt.Errorf("table graph declares no tables")
	}

	g := NewTableGraph()
	for _, t := range f.Tables {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("table graph entry without a name")
		}
		g.AddTable(name, t.DependsOn...)
	}
	return g, nil
}

// LoadTableGraphFile reads a YAML table graph from path
func LoadTableGraphFile(path string) (*TableGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table graph: %w", err)
	}
	defer f.Close()
	return LoadTableGraph(f)
}
