package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// DefaultBatchSize is the number of rows per INSERT statement
const DefaultBatchSize = 100

// Copier writes rows into a target table in fixed-size batches
type Copier struct {
	target    *sql.DB
	dialect   Dialect
	batchSize int
}

// NewCopier creates a copier. A non-positive batchSize uses DefaultBatchSize.
func NewCopier(target *sql.DB, dialect Dialect, batchSize int) *Copier {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Copier{target: target, dialect: dialect, batchSize: batchSize}
}

// BatchCount returns ceil(rows/size)
func BatchCount(rows, size int) int {
	if rows <= 0 || size <= 0 {
		return 0
	}
	return (rows + size - 1) / size
}

// Copy inserts rows with one multi-row INSERT per batch, sequentially. It
// returns the number of batches written; on error that count covers the
// batches committed before the failing one.
func (c *Copier) Copy(ctx context.Context, plan *TablePlan, rows [][]interface{}) (int, error) {
	columns := plan.ColumnNames()
	batches := 0

	for start := 0; start < len(rows); start += c.batchSize {
		end := min(start+c.batchSize, len(rows))
		batch := rows[start:end]

		args := make([]interface{}, 0, len(batch)*len(columns))
		for i, row := range batch {
			if len(row) != len(columns) {
				return batches, fmt.Errorf("row %d has %d values, expected %d", start+i+1, len(row), len(columns))
			}
			args = append(args, row...)
		}

		query := InsertStatement(c.dialect, plan.Table, columns, len(batch))
		if _, err := c.target.ExecContext(ctx, query, args...); err != nil {
			return batches, fmt.Errorf("batch %d (rows %d-%d): %w", batches+1, start+1, end, err)
		}
		batches++
	}
	return batches, nil
}

// ContinueIdentity sets the target counter one past the largest migrated
// identity value and returns that next value. Empty tables are left alone
// and report 1.
func (c *Copier) ContinueIdentity(ctx context.Context, plan *TablePlan, rows [][]interface{}) (int64, error) {
	idx := -1
	for i, col := range plan.Columns {
		if col.Name == plan.Identity {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("identity column %s not in plan", plan.Identity)
	}
	if len(rows) == 0 {
		return 1, nil
	}

	var maxID int64
	for _, row := range rows {
		id, err := toInt64(row[idx])
		if err != nil {
			return 0, fmt.Errorf("identity column %s: %w", plan.Identity, err)
		}
		maxID = max(maxID, id)
	}

	next := maxID + 1
	if err := c.dialect.ResetIdentity(ctx, c.target, plan.Table, next); err != nil {
		return 0, fmt.Errorf("failed to set next identity to %d: %w", next, err)
	}
	return next, nil
}

// Verify compares the target row count with want
func (c *Copier) Verify(ctx context.Context, table string, want int) error {
	var got int
	if err := c.target.QueryRowContext(ctx, CountStatement(c.dialect, table)).Scan(&got); err != nil {
		return fmt.Errorf("failed to count target rows: %w", err)
	}
	if got != want {
		return fmt.Errorf("%w: %s has %d rows, source had %d", ErrCountMismatch, table, got, want)
	}
	return nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, fmt.Errorf("NULL identity value")
	default:
		return 0, fmt.Errorf("unexpected identity value %T", v)
	}
}
