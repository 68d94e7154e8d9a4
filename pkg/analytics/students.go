package analytics

import "context"

const (
	studentTrendMonths = 12
	nationalityLimit   = 10
)

// StudentAnalytics contains the student report
type StudentAnalytics struct {
	RegistrationTrend         []MonthlyCount     `json:"registrationTrend"`
	CourseEnrollment          []CourseEnrollment `json:"courseEnrollment"`
	PaymentMethodDistribution []LabelCount       `json:"paymentMethodDistribution"`
	ClassTypeDistribution     []LabelCount       `json:"classTypeDistribution"`
	NationalityDistribution   []LabelCount       `json:"nationalityDistribution"`
	EmiratesDistribution      []LabelCount       `json:"emiratesDistribution"`
}

// GetStudentAnalytics retrieves the student report. The registration trend
// always covers the last twelve months; the distributions honour r.
func (s *Service) GetStudentAnalytics(ctx context.Context, r DateRange) (report *StudentAnalytics, err error) {
	ctx, done := s.track(ctx, "students")
	defer done(&err)

	var out StudentAnalytics
	if out.RegistrationTrend, err = s.registrationTrend(ctx, studentTrendMonths); err != nil {
		return nil, err
	}
	if out.CourseEnrollment, err = s.courseEnrollment(ctx, r, 0); err != nil {
		return nil, err
	}
	if out.PaymentMethodDistribution, err = s.distribution(ctx, "students", "payment_method", "registration_date", r, 0); err != nil {
		return nil, err
	}
	if out.ClassTypeDistribution, err = s.distribution(ctx, "students", "class_type", "registration_date", r, 0); err != nil {
		return nil, err
	}
	if out.NationalityDistribution, err = s.distribution(ctx, "students", "nationality", "registration_date", r, nationalityLimit); err != nil {
		return nil, err
	}
	if out.EmiratesDistribution, err = s.distribution(ctx, "students", "emirates", "registration_date", r, 0); err != nil {
		return nil, err
	}
	return &out, nil
}
