package migrate

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columnHeaders = []string{
	"column_name", "data_type", "is_nullable", "column_default",
	"character_maximum_length", "numeric_precision", "numeric_scale", "is_identity",
}

func TestPostgresSource_DescribeTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT column_name, data_type`).
		WithArgs("public", "students").
		WillReturnRows(sqlmock.NewRows(columnHeaders).
			AddRow("id", "integer", "NO", "nextval('students_id_seq'::regclass)", nil, 32, 0, "NO").
			AddRow("full_name", "character varying", "NO", nil, 150, nil, nil, "NO").
			AddRow("email", "character varying", "YES", nil, 255, nil, nil, "NO").
			AddRow("amount_paid", "numeric", "YES", "0", nil, 10, 2, "NO"))
	mock.ExpectQuery(`FROM pg_index`).
		WithArgs(`"public"."students"`).
		WillReturnRows(sqlmock.NewRows([]string{"attname"}).AddRow("id"))

	schema, err := NewPostgresSource(db, "").DescribeTable(context.Background(), "students")
	require.NoError(t, err)

	assert.Equal(t, "students", schema.Name)
	assert.Equal(t, []string{"id", "full_name", "email", "amount_paid"}, schema.ColumnNames())
	assert.Equal(t, []string{"id"}, schema.PrimaryKey)

	id, _ := schema.Column("id")
	require.NotNil(t, id.Default)
	assert.Equal(t, "nextval('students_id_seq'::regclass)", *id.Default)
	assert.False(t, id.Nullable)

	email, _ := schema.Column("email")
	assert.True(t, email.Nullable)
	assert.Nil(t, email.Default)
	assert.Equal(t, int64(255), *email.Length)

	amount, _ := schema.Column("amount_paid")
	assert.Equal(t, int64(10), *amount.Precision)
	assert.Equal(t, int64(2), *amount.Scale)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_DescribeTable_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT column_name, data_type`).
		WithArgs("crm", "ghosts").
		WillReturnRows(sqlmock.NewRows(columnHeaders))

	_, err = NewPostgresSource(db, "crm").DescribeTable(context.Background(), "ghosts")
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.Contains(t, err.Error(), "crm.ghosts")
}

func TestPostgresSource_ForeignKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`constraint_type = 'FOREIGN KEY'`).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "ref_table", "ref_column"}).
			AddRow("invoices", "student_id", "students", "id").
			AddRow("students", "course_id", "courses", "id"))

	fks, err := NewPostgresSource(db, "public").ForeignKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ForeignKey{
		{Table: "invoices", Column: "student_id", RefTable: "students", RefColumn: "id"},
		{Table: "students", Column: "course_id", RefTable: "courses", RefColumn: "id"},
	}, fks)
}

func TestPostgresSource_ReadRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	schema := &TableSchema{
		Name: "schedules",
		Columns: []Column{
			{Name: "id", DataType: "integer"},
			{Name: "days", DataType: "ARRAY"},
			{Name: "meta", DataType: "jsonb", Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "days", "meta" FROM "public"."schedules" ORDER BY "id"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "days", "meta"}).
			AddRow(int64(1), []byte(`{Mon,Wed}`), []byte(`{"room":"A1"}`)).
			AddRow(int64(2), []byte(`{}`), nil))

	rows, err := NewPostgresSource(db, "public").ReadRows(context.Background(), schema)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{
		{int64(1), `["Mon","Wed"]`, `{"room":"A1"}`},
		{int64(2), `[]`, nil},
	}, rows)
}

func TestPostgresSource_ReadRows_MoneyAsNumeric(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	schema := &TableSchema{
		Name: "invoices",
		Columns: []Column{
			{Name: "id", DataType: "integer"},
			{Name: "amount", DataType: "money", Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "amount"::numeric AS "amount" FROM "public"."invoices" ORDER BY "id"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "amount"}).
			AddRow(int64(1), []byte("1234.50")).
			AddRow(int64(2), nil))

	rows, err := NewPostgresSource(db, "public").ReadRows(context.Background(), schema)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{
		{int64(1), "1234.50"},
		{int64(2), nil},
	}, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_ReadRows_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("permission denied"))

	_, err = NewPostgresSource(db, "public").ReadRows(context.Background(), &TableSchema{
		Name:    "payroll",
		Columns: []Column{{Name: "id", DataType: "integer"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payroll")
}
