package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectCount(mock sqlmock.Sqlmock, pattern string, n int64) {
	mock.ExpectQuery(pattern).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(n))
}

func TestGetDashboardStats(t *testing.T) {
	svc, mock := newTestService(t)

	expectCount(mock, "^SELECT COUNT\\(\\*\\) FROM students$", 120)
	expectCount(mock, "^SELECT COUNT\\(\\*\\) FROM courses$", 14)
	expectCount(mock, "^SELECT COUNT\\(\\*\\) FROM trainers$", 6)
	expectCount(mock, "^SELECT COUNT\\(\\*\\) FROM leads$", 48)

	mock.ExpectQuery("^SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM invoices$").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(1234.5))

	start, end := monthBounds(fixedNow, time.UTC, 0)
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM invoices WHERE created_at >= \\$1 AND created_at <= \\$2").
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(250))

	for i := 0; i < 6; i++ {
		expectCount(mock, "FROM students WHERE registration_date >= \\$1 AND registration_date <= \\$2", int64(i+1))
	}

	registered := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, full_name, email, registration_date, payment_status FROM students ORDER BY registration_date DESC, id DESC LIMIT 5").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "registration_date", "payment_status"}).
			AddRow(31, "Aisha Rahman", "aisha@example.com", registered, "paid").
			AddRow(30, "Omar Khalid", nil, registered.Add(-time.Hour), nil))

	mock.ExpectQuery("SELECT COALESCE\\(NULLIF\\(payment_status, ''\\), 'Unknown'\\) AS label, COUNT\\(\\*\\) AS count FROM students GROUP BY label ORDER BY count DESC, label").
		WillReturnRows(sqlmock.NewRows([]string{"label", "count"}).
			AddRow("paid", 80).
			AddRow("pending", 40))

	mock.ExpectQuery("SELECT course_id, COUNT\\(\\*\\) AS count FROM registration_courses GROUP BY course_id ORDER BY count DESC, course_id LIMIT 5").
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "count"}).
			AddRow(2, 50).
			AddRow(1, 20))

	mock.ExpectQuery("SELECT id, name FROM courses WHERE id IN \\(\\$1,\\$2\\)").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "Arabic for Beginners").
			AddRow(2, "IELTS Preparation"))

	stats, err := svc.GetDashboardStats(context.Background(), DateRange{})
	require.NoError(t, err)

	assert.Equal(t, int64(120), stats.TotalStudents)
	assert.Equal(t, int64(14), stats.TotalCourses)
	assert.Equal(t, int64(6), stats.TotalTrainers)
	assert.Equal(t, int64(48), stats.TotalLeads)
	assert.Equal(t, "AED 1,234.50", stats.TotalRevenue)
	assert.Equal(t, "AED 250.00", stats.MonthlyRevenue)

	require.Len(t, stats.MonthlyRegistrations, 6)
	assert.Equal(t, MonthlyCount{Month: "Oct 2025", Count: 6}, stats.MonthlyRegistrations[0])
	assert.Equal(t, MonthlyCount{Month: "Mar 2026", Count: 1}, stats.MonthlyRegistrations[5])

	require.Len(t, stats.RecentStudents, 2)
	assert.Equal(t, "Aisha Rahman", stats.RecentStudents[0].FullName)
	assert.Equal(t, "", stats.RecentStudents[1].Email)
	assert.Equal(t, "", stats.RecentStudents[1].PaymentStatus)

	assert.Equal(t, []LabelCount{{Label: "paid", Count: 80}, {Label: "pending", Count: 40}}, stats.PaymentStatusDistribution)
	assert.Equal(t, []CourseEnrollment{
		{CourseID: 2, CourseName: "IELTS Preparation", Count: 50},
		{CourseID: 1, CourseName: "Arabic for Beginners", Count: 20},
	}, stats.TopCourses)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDashboardStats_DateRange(t *testing.T) {
	svc, mock := newTestService(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM students WHERE \\(registration_date >= \\$1 AND registration_date <= \\$2\\)").
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))
	expectCount(mock, "^SELECT COUNT\\(\\*\\) FROM courses$", 14)
	expectCount(mock, "^SELECT COUNT\\(\\*\\) FROM trainers$", 6)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM leads WHERE \\(created_at >= \\$1 AND created_at <= \\$2\\)").
		WithArgs(from, to).
		WillReturnError(errors.New("relation \"leads\" does not exist"))

	stats, err := svc.GetDashboardStats(context.Background(), DateRange{From: &from, To: &to})
	assert.Nil(t, stats)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count leads")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDashboardStats_MissingCourse(t *testing.T) {
	svc, mock := newTestService(t, WithCourseResolver(stubResolver{}))

	for _, table := range []string{"students", "courses", "trainers", "leads"} {
		expectCount(mock, "^SELECT COUNT\\(\\*\\) FROM "+table+"$", 1)
	}
	mock.ExpectQuery("FROM invoices").WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(0))
	mock.ExpectQuery("FROM invoices").WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(0))
	for i := 0; i < 6; i++ {
		expectCount(mock, "FROM students WHERE registration_date", 0)
	}
	mock.ExpectQuery("FROM students ORDER BY").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "registration_date", "payment_status"}))
	mock.ExpectQuery("AS label").
		WillReturnRows(sqlmock.NewRows([]string{"label", "count"}))
	mock.ExpectQuery("FROM registration_courses").
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "count"}).AddRow(99, 1))

	_, err := svc.GetDashboardStats(context.Background(), DateRange{})
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

// stubResolver resolves nothing
type stubResolver struct{}

func (stubResolver) ResolveCourseNames(_ context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) > 0 {
		return nil, ErrCourseNotFound
	}
	return map[int64]string{}, nil
}
