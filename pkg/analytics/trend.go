package analytics

import (
	"context"
	"fmt"
	"time"
)

const monthLayout = "Jan 2006"

// MonthlyCount is one bucket of a count trend
type MonthlyCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// MonthlyRevenue is one bucket of a revenue trend
type MonthlyRevenue struct {
	Month     string  `json:"month"`
	Amount    float64 `json:"amount"`
	Formatted string  `json:"formatted"`
}

// monthBounds returns the first and last instant of the month `back` months
// before now, in loc. The end bound is truncated to microseconds, the
// resolution of PostgreSQL timestamps.
func monthBounds(now time.Time, loc *time.Location, back int) (time.Time, time.Time) {
	now = now.In(loc)
	start := time.Date(now.Year(), now.Month()-time.Month(back), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Microsecond)
	return start, end
}

// eachMonth calls fn for the last `months` months, newest first. slot is the
// chronological index of the bucket, so the current month has slot months-1.
func (s *Service) eachMonth(months int, fn func(slot int, start, end time.Time) error) error {
	if months < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMonths, months)
	}
	now := s.now()
	for i := 0; i < months; i++ {
		start, end := monthBounds(now, s.loc, i)
		if err := fn(months-1-i, start, end); err != nil {
			return err
		}
	}
	return nil
}

// GetMonthlyRegistrations returns student registration counts for the last
// months calendar months, oldest first.
func (s *Service) GetMonthlyRegistrations(ctx context.Context, months int) (trend []MonthlyCount, err error) {
	ctx, done := s.track(ctx, "monthly_registrations")
	defer done(&err)

	return s.registrationTrend(ctx, months)
}

func (s *Service) registrationTrend(ctx context.Context, months int) ([]MonthlyCount, error) {
	out := make([]MonthlyCount, max(months, 0))
	err := s.eachMonth(months, func(slot int, start, end time.Time) error {
		q := s.sb.Select("COUNT(*)").From("students").
			Where("registration_date >= ? AND registration_date <= ?", start, end)
		var n int64
		if err := s.queryRow(ctx, q, &n); err != nil {
			return fmt.Errorf("failed to count registrations for %s: %w", start.Format(monthLayout), err)
		}
		out[slot] = MonthlyCount{Month: start.Format(monthLayout), Count: n}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetMonthlyRevenue returns invoice totals for the last months calendar
// months, oldest first.
func (s *Service) GetMonthlyRevenue(ctx context.Context, months int) (trend []MonthlyRevenue, err error) {
	ctx, done := s.track(ctx, "monthly_revenue")
	defer done(&err)

	return s.revenueTrend(ctx, months)
}

func (s *Service) revenueTrend(ctx context.Context, months int) ([]MonthlyRevenue, error) {
	out := make([]MonthlyRevenue, max(months, 0))
	err := s.eachMonth(months, func(slot int, start, end time.Time) error {
		total, err := s.revenueBetween(ctx, start, end)
		if err != nil {
			return fmt.Errorf("failed to sum revenue for %s: %w", start.Format(monthLayout), err)
		}
		out[slot] = MonthlyRevenue{Month: start.Format(monthLayout), Amount: total, Formatted: s.money(total)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) revenueBetween(ctx context.Context, start, end time.Time) (float64, error) {
	q := s.sb.Select("COALESCE(SUM(amount), 0)").From("invoices").
		Where("created_at >= ? AND created_at <= ?", start, end)
	var total float64
	if err := s.queryRow(ctx, q, &total); err != nil {
		return 0, err
	}
	return total, nil
}
