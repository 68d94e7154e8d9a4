package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/squirrel"
)

// CourseNameResolver maps course IDs to display names. Every requested ID
// must resolve; a missing course is reported as ErrCourseNotFound.
type CourseNameResolver interface {
	ResolveCourseNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// BatchCourseResolver resolves all names with a single IN query
type BatchCourseResolver struct {
	db *sql.DB
	sb squirrel.StatementBuilderType
}

// NewBatchCourseResolver creates a resolver issuing one query per call
func NewBatchCourseResolver(db *sql.DB) *BatchCourseResolver {
	return &BatchCourseResolver{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ResolveCourseNames implements CourseNameResolver
func (r *BatchCourseResolver) ResolveCourseNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	distinct := distinctIDs(ids)
	if len(distinct) == 0 {
		return names, nil
	}

	query, args, err := r.sb.Select("id", "name").
		From("courses").
		Where(squirrel.Eq{"id": distinct}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build course lookup: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up courses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read courses: %w", err)
	}

	for _, id := range distinct {
		if _, ok := names[id]; !ok {
			return nil, fmt.Errorf("%w: id %d", ErrCourseNotFound, id)
		}
	}
	return names, nil
}

// PerGroupCourseResolver looks up each course name with its own query.
// Kept for deployments that rely on the one-lookup-per-group behaviour.
type PerGroupCourseResolver struct {
	db *sql.DB
}

// NewPerGroupCourseResolver creates a resolver issuing one query per ID
func NewPerGroupCourseResolver(db *sql.DB) *PerGroupCourseResolver {
	return &PerGroupCourseResolver{db: db}
}

// ResolveCourseNames implements CourseNameResolver
func (r *PerGroupCourseResolver) ResolveCourseNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	for _, id := range ids {
		if _, seen := names[id]; seen {
			continue
		}
		var name string
		err := r.db.QueryRowContext(ctx, "SELECT name FROM courses WHERE id = $1", id).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrCourseNotFound, id)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up course %d: %w", id, err)
		}
		names[id] = name
	}
	return names, nil
}

// distinctIDs returns the unique IDs in ascending order
func distinctIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
