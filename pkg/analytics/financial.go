package analytics

import (
	"context"
	"fmt"
)

const (
	revenueTrendMonths = 12
	topRevenueLimit    = 10
)

// PaymentMethodRevenue aggregates invoices paid through one method
type PaymentMethodRevenue struct {
	Method         string  `json:"method"`
	Count          int64   `json:"count"`
	Total          float64 `json:"total"`
	FormattedTotal string  `json:"formattedTotal"`
}

// CourseRevenue is the net registration revenue of one course
type CourseRevenue struct {
	CourseID         int64   `json:"courseId"`
	CourseName       string  `json:"courseName"`
	Revenue          float64 `json:"revenue"`
	FormattedRevenue string  `json:"formattedRevenue"`
}

// UnpaidInvoices summarises invoices whose status is not "paid"
type UnpaidInvoices struct {
	Count          int64   `json:"count"`
	Total          float64 `json:"total"`
	FormattedTotal string  `json:"formattedTotal"`
}

// FinancialAnalytics contains the financial report
type FinancialAnalytics struct {
	TotalRevenue           string                 `json:"totalRevenue"`
	RevenueTrend           []MonthlyRevenue       `json:"revenueTrend"`
	PaymentMethodBreakdown []PaymentMethodRevenue `json:"paymentMethodBreakdown"`
	TopCoursesByRevenue    []CourseRevenue        `json:"topCoursesByRevenue"`
	UnpaidInvoices         UnpaidInvoices         `json:"unpaidInvoices"`
}

// GetFinancialAnalytics retrieves the financial report
func (s *Service) GetFinancialAnalytics(ctx context.Context, r DateRange) (report *FinancialAnalytics, err error) {
	ctx, done := s.track(ctx, "financial")
	defer done(&err)

	var out FinancialAnalytics

	total, err := s.sumInvoices(ctx, r)
	if err != nil {
		return nil, err
	}
	out.TotalRevenue = s.money(total)

	if out.RevenueTrend, err = s.revenueTrend(ctx, revenueTrendMonths); err != nil {
		return nil, err
	}
	if out.PaymentMethodBreakdown, err = s.paymentMethodRevenue(ctx, r); err != nil {
		return nil, err
	}
	if out.TopCoursesByRevenue, err = s.topCoursesByRevenue(ctx, r); err != nil {
		return nil, err
	}
	if out.UnpaidInvoices, err = s.unpaidInvoices(ctx, r); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) paymentMethodRevenue(ctx context.Context, r DateRange) ([]PaymentMethodRevenue, error) {
	q := s.sb.Select(
		"COALESCE(NULLIF(payment_mode, ''), 'Unknown') AS method",
		"COUNT(*) AS count",
		"COALESCE(SUM(amount), 0) AS total",
	).From("invoices")
	q = r.apply(q, "created_at").
		GroupBy("method").
		OrderBy("total DESC", "method")

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to group revenue by payment method: %w", err)
	}
	defer rows.Close()

	out := []PaymentMethodRevenue{}
	for rows.Next() {
		var pm PaymentMethodRevenue
		if err := rows.Scan(&pm.Method, &pm.Count, &pm.Total); err != nil {
			return nil, fmt.Errorf("failed to scan payment method revenue: %w", err)
		}
		pm.FormattedTotal = s.money(pm.Total)
		out = append(out, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payment method revenue: %w", err)
	}
	return out, nil
}

func (s *Service) topCoursesByRevenue(ctx context.Context, r DateRange) ([]CourseRevenue, error) {
	q := s.sb.Select(
		"course_id",
		"COALESCE(SUM(price - COALESCE(discount, 0)), 0) AS revenue",
	).From("registration_courses")
	q = r.apply(q, "created_at").
		GroupBy("course_id").
		OrderBy("revenue DESC", "course_id").
		Limit(topRevenueLimit)

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to sum revenue by course: %w", err)
	}
	defer rows.Close()

	out := []CourseRevenue{}
	for rows.Next() {
		var cr CourseRevenue
		if err := rows.Scan(&cr.CourseID, &cr.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan course revenue: %w", err)
		}
		cr.FormattedRevenue = s.money(cr.Revenue)
		out = append(out, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read course revenue: %w", err)
	}
	rows.Close()

	ids := make([]int64, len(out))
	for i, cr := range out {
		ids[i] = cr.CourseID
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

func (s *Service) unpaidInvoices(ctx context.Context, r DateRange) (UnpaidInvoices, error) {
	q := s.sb.Select("COUNT(*)", "COALESCE(SUM(amount), 0)").
		From("invoices").
		Where("COALESCE(LOWER(status), '') <> 'paid'")
	q = r.apply(q, "created_at")

	var out UnpaidInvoices
	if err := s.queryRow(ctx, q, &out.Count, &out.Total); err != nil {
		return UnpaidInvoices{}, fmt.Errorf("failed to sum unpaid invoices: %w", err)
	}
	out.FormattedTotal = s.money(out.Total)
	return out, nil
}
