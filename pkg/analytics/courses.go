package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// CourseStats is one course with its enrollment count and formatted fees
type CourseStats struct {
	CourseID    int64  `json:"courseId"`
	CourseName  string `json:"courseName"`
	Enrollments int64  `json:"enrollments"`
	FeeOnline   string `json:"feeOnline"`
	FeeOffline  string `json:"feeOffline"`
	FeePrivate  string `json:"feePrivate"`
	FeeBatch    string `json:"feeBatch"`
}

// TimeSlot counts schedules starting within one hour of the day
type TimeSlot struct {
	Hour  int    `json:"hour"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// CourseAnalytics contains the course report
type CourseAnalytics struct {
	Courses          []CourseStats `json:"courses"`
	PopularTimeSlots []TimeSlot    `json:"popularTimeSlots"`
}

// startTimeLayouts are tried in order when start_time arrives as text
var startTimeLayouts = []string{
	"15:04:05",
	"15:04",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// GetCourseAnalytics retrieves every course with its enrollment count,
// highest first, and the schedule time-slot histogram. r restricts which
// registrations are counted; the histogram covers all schedules.
func (s *Service) GetCourseAnalytics(ctx context.Context, r DateRange) (report *CourseAnalytics, err error) {
	ctx, done := s.track(ctx, "courses")
	defer done(&err)

	var out CourseAnalytics
	if out.Courses, err = s.courseStats(ctx, r); err != nil {
		return nil, err
	}
	if out.PopularTimeSlots, err = s.timeSlots(ctx); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) courseStats(ctx context.Context, r DateRange) ([]CourseStats, error) {
	join, args := r.joinOn("registration_courses rc ON rc.course_id = c.id", "rc.created_at")
	q := s.sb.Select(
		"c.id", "c.name",
		"c.fee_online", "c.fee_offline", "c.fee_private", "c.fee_batch",
		"COUNT(rc.id) AS enrollments",
	).
		From("courses c").
		LeftJoin(join, args...).
		GroupBy("c.id", "c.name", "c.fee_online", "c.fee_offline", "c.fee_private", "c.fee_batch").
		OrderBy("enrollments DESC", "c.id")

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query course enrollment: %w", err)
	}
	defer rows.Close()

	out := []CourseStats{}
	for rows.Next() {
		var cs CourseStats
		var online, offline, private, batch sql.NullFloat64
		if err := rows.Scan(&cs.CourseID, &cs.CourseName, &online, &offline, &private, &batch, &cs.Enrollments); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		cs.FeeOnline = s.money(online.Float64)
		cs.FeeOffline = s.money(offline.Float64)
		cs.FeePrivate = s.money(private.Float64)
		cs.FeeBatch = s.money(batch.Float64)
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read courses: %w", err)
	}
	return out, nil
}

func (s *Service) timeSlots(ctx context.Context) ([]TimeSlot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT start_time FROM schedules WHERE start_time IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int64)
	skipped := 0
	for rows.Next() {
		var raw interface{}
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		hour, ok := startHour(raw)
		if !ok {
			skipped++
			continue
		}
		counts[hour]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schedules: %w", err)
	}
	if skipped > 0 {
		s.logger.WithField("skipped", skipped).Warn("schedules with unparseable start_time ignored")
	}

	return histogram(counts), nil
}

// histogram orders hour buckets by count descending, ties by hour ascending
func histogram(counts map[int]int64) []TimeSlot {
	out := make([]TimeSlot, 0, len(counts))
	for hour, n := range counts {
		out = append(out, TimeSlot{Hour: hour, Label: fmt.Sprintf("%02d:00", hour), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

// startHour extracts the hour of day from a scanned start_time value
func startHour(raw interface{}) (int, bool) {
	var text string
	switch v := raw.(type) {
	case time.Time:
		return v.Hour(), true
	case []byte:
		text = string(v)
	case string:
		text = v
	default:
		return 0, false
	}

	text = strings.TrimSpace(text)
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Hour(), true
		}
	}
	return 0, false
}
