package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Source reads schema and rows from the database being migrated
type Source interface {
	Ping(ctx context.Context) error
	DescribeTable(ctx context.Context, table string) (*TableSchema, error)
	ForeignKeys(ctx context.Context) ([]ForeignKey, error)
	// ReadRows returns every row of the table ordered by primary key, with
	// values already passed through NormalizeValue.
	ReadRows(ctx context.Context, schema *TableSchema) ([][]interface{}, error)
}

// PostgresSource introspects a PostgreSQL schema through information_schema
type PostgresSource struct {
	db     *sql.DB
	schema string
}

// NewPostgresSource creates a source reading tables from schema
func NewPostgresSource(db *sql.DB, schema string) *PostgresSource {
	if schema == "" {
		schema = "public"
	}
	return &PostgresSource{db: db, schema: schema}
}

// Ping verifies the source connection
func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const columnsQuery = `
	SELECT column_name, data_type, is_nullable, column_default,
		character_maximum_length, numeric_precision, numeric_scale, is_identity
	FROM information_schema.columns
	WHERE table_schema = $1 AND table_name = $2
	ORDER BY ordinal_position
`

const primaryKeyQuery = `
	SELECT a.attname
	FROM pg_index i
	JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
	WHERE i.indrelid = $1::regclass AND i.indisprimary
	ORDER BY array_position(i.indkey::int2[], a.attnum)
`

const foreignKeysQuery = `
	SELECT tc.table_name, kcu.column_name, ccu.table_name, ccu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
	JOIN information_schema.constraint_column_usage ccu
		ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
	ORDER BY tc.table_name, kcu.column_name
`

// DescribeTable reads the columns and primary key of table
func (s *PostgresSource) DescribeTable(ctx context.Context, table string) (*TableSchema, error) {
	rows, err := s.db.QueryContext(ctx, columnsQuery, s.schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	schema := &TableSchema{Name: table}
	for rows.Next() {
		var (
			col                      Column
			nullable, identity       string
			def                      sql.NullString
			length, precision, scale sql.NullInt64
		)
		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &def, &length, &precision, &scale, &identity); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		col.IsIdentity = strings.EqualFold(identity, "YES")
		if def.Valid {
			col.Default = &def.String
		}
		col.Length = nullInt(length)
		col.Precision = nullInt(precision)
		col.Scale = nullInt(scale)
		schema.Columns = append(schema.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	rows.Close()

	if len(schema.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, s.schema, table)
	}

	pk, err := s.primaryKey(ctx, table)
	if err != nil {
		return nil, err
	}
	schema.PrimaryKey = pk
	return schema, nil
}

func (s *PostgresSource) primaryKey(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, primaryKeyQuery, s.qualified(table))
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", table, err)
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan primary key of %s: %w", table, err)
		}
		pk = append(pk, name)
	}
	return pk, rows.Err()
}

// ForeignKeys lists the foreign keys declared in the schema
func (s *PostgresSource) ForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	rows, err := s.db.QueryContext(ctx, foreignKeysQuery, s.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// ReadRows loads the whole table into memory, ordered by primary key
func (s *PostgresSource) ReadRows(ctx context.Context, schema *TableSchema) ([][]interface{}, error) {
	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = selectExpr(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), s.qualified(schema.Name))
	if len(schema.PrimaryKey) > 0 {
		pk := make([]string, len(schema.PrimaryKey))
		for i, name := range schema.PrimaryKey {
			pk[i] = pq.QuoteIdentifier(name)
		}
		query += " ORDER BY " + strings.Join(pk, ", ")
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %s: %w", schema.Name, err)
	}
	defer rows.Close()

	var out [][]interface{}
	for rows.Next() {
		values := make([]interface{}, len(schema.Columns))
		ptrs := make([]interface{}, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", schema.Name, err)
		}
		for i, col := range schema.Columns {
			if values[i], err = NormalizeValue(col, values[i]); err != nil {
				return nil, fmt.Errorf("column %s of %s: %w", col.Name, schema.Name, err)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows of %s: %w", schema.Name, err)
	}
	return out, nil
}

// selectExpr reads money as numeric; its text form carries the locale's
// currency symbol and separators, which DECIMAL targets reject.
func selectExpr(c Column) string {
	name := pq.QuoteIdentifier(c.Name)
	if ParseSourceType(c.DataType) == TypeMoney {
		return name + "::numeric AS " + name
	}
	return name
}

func (s *PostgresSource) qualified(table string) string {
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(table)
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
