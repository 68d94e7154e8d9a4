package analytics

import (
	"context"
	"fmt"
)

// LabelCount is one slice of a categorical distribution
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// CourseEnrollment counts registrations for one course
type CourseEnrollment struct {
	CourseID   int64  `json:"courseId"`
	CourseName string `json:"courseName"`
	Count      int64  `json:"count"`
}

// distribution groups table rows by column. Blank and NULL values are
// reported as "Unknown". limit of zero means unlimited.
func (s *Service) distribution(ctx context.Context, table, column, dateColumn string, r DateRange, limit uint64) ([]LabelCount, error) {
	q := s.sb.Select(
		fmt.Sprintf("COALESCE(NULLIF(%s, ''), 'Unknown') AS label", column),
		"COUNT(*) AS count",
	).From(table)
	q = r.apply(q, dateColumn).
		GroupBy("label").
		OrderBy("count DESC", "label")
	if limit > 0 {
		q = q.Limit(limit)
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to group %s by %s: %w", table, column, err)
	}
	defer rows.Close()

	out := []LabelCount{}
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan %s distribution: %w", column, err)
		}
		out = append(out, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s distribution: %w", column, err)
	}
	return out, nil
}

// courseEnrollment counts registration_courses rows per course, highest first
func (s *Service) courseEnrollment(ctx context.Context, r DateRange, limit uint64) ([]CourseEnrollment, error) {
	q := s.sb.Select("course_id", "COUNT(*) AS count").From("registration_courses")
	q = r.apply(q, "created_at").
		GroupBy("course_id").
		OrderBy("count DESC", "course_id")
	if limit > 0 {
		q = q.Limit(limit)
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to count enrollments: %w", err)
	}
	defer rows.Close()

	out := []CourseEnrollment{}
	for rows.Next() {
		var ce CourseEnrollment
		if err := rows.Scan(&ce.CourseID, &ce.Count); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		out = append(out, ce)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read enrollments: %w", err)
	}
	rows.Close()

	ids := make([]int64, len(out))
	for i, ce := range out {
		ids[i] = ce.CourseID
	}
	names, err := s.courses.ResolveCourseNames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve course names: %w", err)
	}
	for i := range out {
		out[i].CourseName = names[out[i].CourseID]
	}
	return out, nil
}
