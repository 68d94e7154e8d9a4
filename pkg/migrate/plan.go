package migrate

import (
	"fmt"
	"strings"
)

// ColumnPlan is one translated target column
type ColumnPlan struct {
	Name          string
	SourceType    SourceType
	TargetType    string
	Nullable      bool
	Default       string
	AutoIncrement bool
	Fallback      bool
}

// TablePlan is the target definition derived from a source table
type TablePlan struct {
	Table      string
	Columns    []ColumnPlan
	PrimaryKey []string
	// Identity names the auto-increment primary key column, if any
	Identity string
	Warnings []string
}

// ColumnNames returns the target column names in source order
func (p *TablePlan) ColumnNames() []string {
	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.Name
	}
	return names
}

// FallbackColumns returns the columns translated with FallbackType
func (p *TablePlan) FallbackColumns() []string {
	var out []string
	for _, c := range p.Columns {
		if c.Fallback {
			out = append(out, c.Name)
		}
	}
	return out
}

// Statements returns the DDL recreating the table on d
func (p *TablePlan) Statements(d Dialect) []string {
	return []string{DropTable(d, p.Table), d.CreateTable(p)}
}

// BuildPlan translates schema into a target definition for d. Sequence
// defaults and identity columns become auto-increment only when they are the
// sole primary key column; elsewhere the default is dropped with a warning.
func BuildPlan(schema *TableSchema, d Dialect) (*TablePlan, error) {
	if len(schema.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s has no columns", ErrTableNotFound, schema.Name)
	}

	plan := &TablePlan{
		Table:      schema.Name,
		PrimaryKey: append([]string(nil), schema.PrimaryKey...),
	}
	types := d.Types()

	for _, col := range schema.Columns {
		target, fallback := types.Translate(col)
		cp := ColumnPlan{
			Name:       col.Name,
			SourceType: ParseSourceType(col.DataType),
			TargetType: target,
			Nullable:   col.Nullable,
			Fallback:   fallback,
		}
		if fallback {
			plan.warn("column %s: unknown source type %q mapped to %s", col.Name, col.DataType, FallbackType)
		}

		parsed := ParsedDefault{Kind: DefaultNone}
		if col.Default != nil {
			parsed = ParseDefault(*col.Default)
		}

		isSoleKey := len(schema.PrimaryKey) == 1 && schema.PrimaryKey[0] == col.Name
		if parsed.Kind == DefaultSequence || col.IsIdentity {
			if isSoleKey && isIntegerType(cp.SourceType) {
				cp.AutoIncrement = true
				cp.Nullable = false
				plan.Identity = col.Name
			} else {
				plan.warn("column %s: sequence default dropped, target will not generate values", col.Name)
			}
		}

		clause, ok, reason := renderDefault(d, parsed, target)
		if ok {
			cp.Default = clause
		} else if reason != "" {
			plan.warn("column %s: default dropped: %s", col.Name, reason)
		}

		plan.Columns = append(plan.Columns, cp)
	}

	for _, pk := range plan.PrimaryKey {
		if _, ok := schema.Column(pk); !ok {
			return nil, fmt.Errorf("primary key column %s missing from %s", pk, schema.Name)
		}
	}
	return plan, nil
}

func (p *TablePlan) warn(format string, args ...interface{}) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

func isIntegerType(t SourceType) bool {
	switch t {
	case TypeSmallint, TypeInteger, TypeBigint:
		return true
	}
	return false
}

// String renders the plan for dry-run output
func (p *TablePlan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d columns", p.Table, len(p.Columns))
	if p.Identity != "" {
		fmt.Fprintf(&b, ", identity %s", p.Identity)
	}
	b.WriteString(")")
	return b.String()
}
