package analytics

import "context"

// HrmAnalytics contains the HR summary. The figures are fixed sample values
// and IsIllustrative is always true until HR records are modelled.
type HrmAnalytics struct {
	IsIllustrative         bool         `json:"isIllustrative"`
	TotalEmployees         int64        `json:"totalEmployees"`
	ActiveEmployees        int64        `json:"activeEmployees"`
	DepartmentDistribution []LabelCount `json:"departmentDistribution"`
	MonthlyPayroll         string       `json:"monthlyPayroll"`
	AttendanceRate         string       `json:"attendanceRate"`
}

// GetHrmAnalytics returns illustrative HR figures. No table is read.
func (s *Service) GetHrmAnalytics(ctx context.Context) (report *HrmAnalytics, err error) {
	_, done := s.track(ctx, "hrm")
	defer done(&err)

	s.logger.WithField("operation", "hrm").Warn("serving illustrative HRM analytics, not derived from stored records")

	return &HrmAnalytics{
		IsIllustrative:  true,
		TotalEmployees:  24,
		ActiveEmployees: 22,
		DepartmentDistribution: []LabelCount{
			{Label: "Training", Count: 12},
			{Label: "Administration", Count: 5},
			{Label: "Sales", Count: 4},
			{Label: "Finance", Count: 3},
		},
		MonthlyPayroll: s.money(186500),
		AttendanceRate: FormatPercent(189, 200),
	}, nil
}
