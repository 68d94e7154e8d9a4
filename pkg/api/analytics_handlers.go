package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/eduledger/institute/pkg/analytics"
	"github.com/eduledger/institute/pkg/httputil"
	"github.com/eduledger/institute/pkg/observability"
)

// Reporter is the analytics surface served over HTTP. *analytics.Service
// implements it.
type Reporter interface {
	GetDashboardStats(ctx context.Context, r analytics.DateRange) (*analytics.DashboardStats, error)
	GetMonthlyRegistrations(ctx context.Context, months int) ([]analytics.MonthlyCount, error)
	GetMonthlyRevenue(ctx context.Context, months int) ([]analytics.MonthlyRevenue, error)
	GetStudentAnalytics(ctx context.Context, r analytics.DateRange) (*analytics.StudentAnalytics, error)
	GetFinancialAnalytics(ctx context.Context, r analytics.DateRange) (*analytics.FinancialAnalytics, error)
	GetCourseAnalytics(ctx context.Context, r analytics.DateRange) (*analytics.CourseAnalytics, error)
	GetCrmAnalytics(ctx context.Context, r analytics.DateRange) (*analytics.CrmAnalytics, error)
	GetHrmAnalytics(ctx context.Context) (*analytics.HrmAnalytics, error)
}

var _ Reporter = (*analytics.Service)(nil)

const (
	defaultRegistrationMonths = 6
	defaultRevenueMonths      = 12
	maxMonths                 = 120
)

// AnalyticsHandlers provides analytics API endpoints
type AnalyticsHandlers struct {
	reporter Reporter
	loc      *time.Location
}

// NewAnalyticsHandlers creates handlers parsing dates in loc
func NewAnalyticsHandlers(reporter Reporter, loc *time.Location) *AnalyticsHandlers {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsHandlers{reporter: reporter, loc: loc}
}

// RegisterRoutes registers analytics API routes
func (h *AnalyticsHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/analytics/dashboard", h.getDashboard).Methods(http.MethodGet)
	r.HandleFunc("/api/analytics/registrations/monthly", h.getMonthlyRegistrations).Methods(http.MethodGet)
	r.HandleFunc("/api/analytics/revenue/monthly", h.getMonthlyRevenue).Methods(http.MethodGet)
	r.HandleFunc("/api/analytics/students", h.getStudents).Methods(http.MethodGet)
	r.HandleFunc("/api/analytics/financial", h.getFinancial).Methods(http.MethodGet)
	r.HandleFunc("/api/analytics/courses", h.getCourses).Methods(http.MethodGet)
	r.HandleFunc("/api/analytics/crm", h.getCrm).Methods(http.MethodGet)
	r.HandleFunc("/api/analytics/hrm", h.getHrm).Methods(http.MethodGet)
}

// dateRange parses from/to, writing a 400 on failure
func (h *AnalyticsHandlers) dateRange(w http.ResponseWriter, r *http.Request) (analytics.DateRange, bool) {
	from, to, err := httputil.ParseDateRange(r, h.loc)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return analytics.DateRange{}, false
	}
	return analytics.DateRange{From: from, To: to}, true
}

func (h *AnalyticsHandlers) months(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	months, err := httputil.ParseQueryInt(r, "months", def)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return 0, false
	}
	if months > maxMonths {
		httputil.WriteBadRequest(w, "months must be at most 120")
		return 0, false
	}
	return months, true
}

// respond writes result, mapping caller mistakes to 400 and everything else to 500
func respond(w http.ResponseWriter, r *http.Request, op string, result interface{}, err error) {
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidMonths) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		observability.FromContext(r.Context()).WithError(err).WithField("operation", op).Error("analytics request failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// getDashboard handles GET /api/analytics/dashboard
func (h *AnalyticsHandlers) getDashboard(w http.ResponseWriter, r *http.Request) {
	dr, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	stats, err := h.reporter.GetDashboardStats(r.Context(), dr)
	respond(w, r, "dashboard", stats, err)
}

// getMonthlyRegistrations handles GET /api/analytics/registrations/monthly
// Query params:
//   - months: number of months ending with the current one (default: 6)
func (h *AnalyticsHandlers) getMonthlyRegistrations(w http.ResponseWriter, r *http.Request) {
	months, ok := h.months(w, r, defaultRegistrationMonths)
	if !ok {
		return
	}
	trend, err := h.reporter.GetMonthlyRegistrations(r.Context(), months)
	respond(w, r, "monthly_registrations", trend, err)
}

// getMonthlyRevenue handles GET /api/analytics/revenue/monthly
func (h *AnalyticsHandlers) getMonthlyRevenue(w http.ResponseWriter, r *http.Request) {
	months, ok := h.months(w, r, defaultRevenueMonths)
	if !ok {
		return
	}
	trend, err := h.reporter.GetMonthlyRevenue(r.Context(), months)
	respond(w, r, "monthly_revenue", trend, err)
}

func (h *AnalyticsHandlers) getStudents(w http.ResponseWriter, r *http.Request) {
	dr, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	report, err := h.reporter.GetStudentAnalytics(r.Context(), dr)
	respond(w, r, "students", report, err)
}

func (h *AnalyticsHandlers) getFinancial(w http.ResponseWriter, r *http.Request) {
	dr, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	report, err := h.reporter.GetFinancialAnalytics(r.Context(), dr)
	respond(w, r, "financial", report, err)
}

func (h *AnalyticsHandlers) getCourses(w http.ResponseWriter, r *http.Request) {
	dr, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	report, err := h.reporter.GetCourseAnalytics(r.Context(), dr)
	respond(w, r, "courses", report, err)
}

func (h *AnalyticsHandlers) getCrm(w http.ResponseWriter, r *http.Request) {
	dr, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	report, err := h.reporter.GetCrmAnalytics(r.Context(), dr)
	respond(w, r, "crm", report, err)
}

// getHrm handles GET /api/analytics/hrm. The data is illustrative.
func (h *AnalyticsHandlers) getHrm(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.GetHrmAnalytics(r.Context())
	respond(w, r, "hrm", report, err)
}
