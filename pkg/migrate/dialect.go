package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Dialect renders DDL and DML for a target database
type Dialect interface {
	Name() string
	Types() TypeMapping
	QuoteIdent(name string) string
	QuoteString(value string) string
	BoolLiteral(v bool) string
	// CurrentTimestamp returns the DEFAULT clause for a now()-style default
	// on a column of targetType, or false when the column cannot take one.
	CurrentTimestamp(targetType string) (string, bool)
	AllowsLiteralDefault(targetType string) bool
	CreateTable(plan *TablePlan) string
	// ResetIdentity makes next the table's next generated identity value
	ResetIdentity(ctx context.Context, db Execer, table string, next int64) error
}

// DialectFor returns the dialect registered under name
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql":
		return MySQL{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, name)
	}
}

// DropTable returns the statement removing table if it exists
func DropTable(d Dialect, table string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteIdent(table)
}

// InsertStatement returns a multi-row INSERT with rows groups of ? placeholders
func InsertStatement(d Dialect, table string, columns []string, rows int) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdent(c)
	}
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	groups := make([]string, rows)
	for i := range groups {
		groups[i] = group
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		d.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(groups, ", "))
}

// CountStatement returns SELECT COUNT(*) over table
func CountStatement(d Dialect, table string) string {
	return "SELECT COUNT(*) FROM " + d.QuoteIdent(table)
}

func columnClause(d Dialect, c ColumnPlan) string {
	var b strings.Builder
	b.WriteString(d.QuoteIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(c.TargetType)
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	return b.String()
}

var fractionalPrecision = regexp.MustCompile(`^(DATETIME|TIMESTAMP)(\((\d)\))?$`)

// MySQL targets MySQL 8 with InnoDB and utf8mb4
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) Types() TypeMapping { return mysqlTypes }

func (MySQL) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (MySQL) QuoteString(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (MySQL) BoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (MySQL) CurrentTimestamp(targetType string) (string, bool) {
	m := fractionalPrecision.FindStringSubmatch(strings.ToUpper(targetType))
	if m == nil {
		return "", false
	}
	if m[3] != "" {
		return "CURRENT_TIMESTAMP(" + m[3] + ")", true
	}
	return "CURRENT_TIMESTAMP", true
}

// AllowsLiteralDefault is false for TEXT, BLOB and JSON columns, which MySQL
// only accepts expression defaults on.
func (MySQL) AllowsLiteralDefault(targetType string) bool {
	t := strings.ToUpper(targetType)
	return !strings.Contains(t, "TEXT") && !strings.Contains(t, "BLOB") && t != "JSON"
}

func (d MySQL) CreateTable(plan *TablePlan) string {
	defs := make([]string, 0, len(plan.Columns)+1)
	for _, c := range plan.Columns {
		clause := columnClause(d, c)
		if c.AutoIncrement {
			clause += " AUTO_INCREMENT"
		}
		defs = append(defs, clause)
	}
	if len(plan.PrimaryKey) > 0 {
		pk := make([]string, len(plan.PrimaryKey))
		for i, name := range plan.PrimaryKey {
			pk[i] = d.QuoteIdent(name)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(pk, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		d.QuoteIdent(plan.Table), strings.Join(defs, ",\n  "))
}

// ResetIdentity sets AUTO_INCREMENT. MySQL does not accept a placeholder here.
func (d MySQL) ResetIdentity(ctx context.Context, db Execer, table string, next int64) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s AUTO_INCREMENT = %d", d.QuoteIdent(table), next))
	return err
}

// SQLite targets SQLite 3 via mattn/go-sqlite3
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Types() TypeMapping { return sqliteTypes }

func (SQLite) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLite) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (SQLite) BoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (SQLite) CurrentTimestamp(string) (string, bool) {
	return "CURRENT_TIMESTAMP", true
}

func (SQLite) AllowsLiteralDefault(string) bool { return true }

// CreateTable declares a single auto-increment key inline as
// INTEGER PRIMARY KEY AUTOINCREMENT, the only form SQLite accepts.
func (d SQLite) CreateTable(plan *TablePlan) string {
	defs := make([]string, 0, len(plan.Columns)+1)
	inlinePK := false
	for _, c := range plan.Columns {
		if c.AutoIncrement {
			defs = append(defs, d.QuoteIdent(c.Name)+" INTEGER PRIMARY KEY AUTOINCREMENT")
			inlinePK = true
			continue
		}
		defs = append(defs, columnClause(d, c))
	}
	if len(plan.PrimaryKey) > 0 && !inlinePK {
		pk := make([]string, len(plan.PrimaryKey))
		for i, name := range plan.PrimaryKey {
			pk[i] = d.QuoteIdent(name)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(pk, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", d.QuoteIdent(plan.Table), strings.Join(defs, ",\n  "))
}

// ResetIdentity rewrites the table's sqlite_sequence row so that the next
// rowid handed out is next.
func (d SQLite) ResetIdentity(ctx context.Context, db Execer, table string, next int64) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", table); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, "INSERT INTO sqlite_sequence (name, seq) VALUES (?, ?)", table, next-1)
	return err
}
