package analytics

import (
	"time"

	"github.com/Masterminds/squirrel"
)

// DateRange restricts an aggregation to rows whose date column falls within
// [From, To]. A nil bound is open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// IsZero reports whether the range is open on both ends
func (r DateRange) IsZero() bool {
	return r.From == nil && r.To == nil
}

func (r DateRange) where(column string) squirrel.Sqlizer {
	var conds squirrel.And
	if r.From != nil {
		conds = append(conds, squirrel.GtOrEq{column: *r.From})
	}
	if r.To != nil {
		conds = append(conds, squirrel.LtOrEq{column: *r.To})
	}
	if len(conds) == 0 {
		return nil
	}
	return conds
}

// apply adds the range condition on column to q. An open range leaves q untouched.
func (r DateRange) apply(q squirrel.SelectBuilder, column string) squirrel.SelectBuilder {
	if cond := r.where(column); cond != nil {
		return q.Where(cond)
	}
	return q
}

// joinOn extends a join clause with the range condition on column
func (r DateRange) joinOn(clause, column string) (string, []interface{}) {
	var args []interface{}
	if r.From != nil {
		clause += " AND " + column + " >= ?"
		args = append(args, *r.From)
	}
	if r.To != nil {
		clause += " AND " + column + " <= ?"
		args = append(args, *r.To)
	}
	return clause, args
}
