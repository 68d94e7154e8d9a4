package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	dashboardTrendMonths = 6
	recentStudentsLimit  = 5
	topCoursesLimit      = 5
)

// RecentStudent is a newly registered student shown on the dashboard
type RecentStudent struct {
	ID               int64     `json:"id"`
	FullName         string    `json:"fullName"`
	Email            string    `json:"email"`
	RegistrationDate time.Time `json:"registrationDate"`
	PaymentStatus    string    `json:"paymentStatus"`
}

// DashboardStats contains the landing-page KPIs
type DashboardStats struct {
	TotalStudents             int64              `json:"totalStudents"`
	TotalCourses              int64              `json:"totalCourses"`
	TotalTrainers             int64              `json:"totalTrainers"`
	TotalLeads                int64              `json:"totalLeads"`
	TotalRevenue              string             `json:"totalRevenue"`
	MonthlyRevenue            string             `json:"monthlyRevenue"`
	MonthlyRegistrations      []MonthlyCount     `json:"monthlyRegistrations"`
	RecentStudents            []RecentStudent    `json:"recentStudents"`
	PaymentStatusDistribution []LabelCount       `json:"paymentStatusDistribution"`
	TopCourses                []CourseEnrollment `json:"topCourses"`
}

// GetDashboardStats retrieves the dashboard KPIs. Students are filtered on
// registration date, leads and invoices on creation time. Course and trainer
// counts, the current-month revenue and the registration trend ignore r.
func (s *Service) GetDashboardStats(ctx context.Context, r DateRange) (stats *DashboardStats, err error) {
	ctx, done := s.track(ctx, "dashboard")
	defer done(&err)

	var out DashboardStats

	if out.TotalStudents, err = s.count(ctx, "students", "registration_date", r); err != nil {
		return nil, err
	}
	if out.TotalCourses, err = s.count(ctx, "courses", "", r); err != nil {
		return nil, err
	}
	if out.TotalTrainers, err = s.count(ctx, "trainers", "", r); err != nil {
		return nil, err
	}
	if out.TotalLeads, err = s.count(ctx, "leads", "created_at", r); err != nil {
		return nil, err
	}

	total, err := s.sumInvoices(ctx, r)
	if err != nil {
		return nil, err
	}
	out.TotalRevenue = s.money(total)

	start, end := monthBounds(s.now(), s.loc, 0)
	current, err := s.revenueBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to sum current month revenue: %w", err)
	}
	out.MonthlyRevenue = s.money(current)

	if out.MonthlyRegistrations, err = s.registrationTrend(ctx, dashboardTrendMonths); err != nil {
		return nil, err
	}
	if out.RecentStudents, err = s.recentStudents(ctx, r); err != nil {
		return nil, err
	}
	if out.PaymentStatusDistribution, err = s.distribution(ctx, "students", "payment_status", "registration_date", r, 0); err != nil {
		return nil, err
	}
	if out.TopCourses, err = s.courseEnrollment(ctx, r, topCoursesLimit); err != nil {
		return nil, err
	}

	return &out, nil
}

func (s *Service) recentStudents(ctx context.Context, r DateRange) ([]RecentStudent, error) {
	q := s.sb.Select("id", "full_name", "email", "registration_date", "payment_status").From("students")
	q = r.apply(q, "registration_date").
		OrderBy("registration_date DESC", "id DESC").
		Limit(recentStudentsLimit)

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent students: %w", err)
	}
	defer rows.Close()

	out := []RecentStudent{}
	for rows.Next() {
		var st RecentStudent
		var email, status sql.NullString
		if err := rows.Scan(&st.ID, &st.FullName, &email, &st.RegistrationDate, &status); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		st.Email = email.String
		st.PaymentStatus = status.String
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recent students: %w", err)
	}
	return out, nil
}
