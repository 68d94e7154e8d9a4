// Package analytics computes the institute's dashboard and report statistics.
//
// # Overview
//
// Every figure is recomputed from the live tables on each call. Nothing is
// pre-aggregated or cached: a Service holds only a *sql.DB and its settings,
// and each operation issues its sub-queries one after another.
//
// Reports:
//   - Dashboard: entity counts, revenue, six-month registration trend, recent
//     students, payment status split and top courses by enrollment
//   - Students: twelve-month trend and categorical distributions
//   - Financial: twelve-month revenue trend, payment method breakdown, top
//     courses by revenue and unpaid invoices
//   - Courses: enrollment with formatted fees and a time-slot histogram
//   - CRM: lead conversion rate and follow-up averages
//   - HRM: fixed illustrative figures, flagged as such in the response
//
// # Monthly Buckets
//
// Trends walk back from the current month in the service's time zone. Each
// bucket runs one bounded aggregate over [first instant, last instant] of its
// month and results are returned oldest first, ending with the current month.
//
// # Usage Example
//
//	svc := analytics.NewService(db,
//		analytics.WithLocation(dubai),
//		analytics.WithMetrics(metrics),
//	)
//	stats, err := svc.GetDashboardStats(ctx, analytics.DateRange{})
//
// Course names for grouped rows are resolved by a CourseNameResolver. The
// default issues one IN query per report; NewPerGroupCourseResolver issues
// one lookup per group.
package analytics
