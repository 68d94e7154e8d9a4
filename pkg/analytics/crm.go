package analytics

import (
	"context"
	"fmt"
)

// CrmAnalytics contains the lead funnel report
type CrmAnalytics struct {
	TotalLeads             int64        `json:"totalLeads"`
	ConvertedLeads         int64        `json:"convertedLeads"`
	ConversionRate         string       `json:"conversionRate"`
	LeadSourceDistribution []LabelCount `json:"leadSourceDistribution"`
	LeadStatusDistribution []LabelCount `json:"leadStatusDistribution"`
	TotalFollowUps         int64        `json:"totalFollowUps"`
	AvgFollowUpsPerLead    string       `json:"avgFollowUpsPerLead"`
}

// GetCrmAnalytics retrieves lead conversion and follow-up statistics. Leads
// are filtered on creation time; follow-ups are counted for those leads.
func (s *Service) GetCrmAnalytics(ctx context.Context, r DateRange) (report *CrmAnalytics, err error) {
	ctx, done := s.track(ctx, "crm")
	defer done(&err)

	var out CrmAnalytics
	if out.TotalLeads, err = s.count(ctx, "leads", "created_at", r); err != nil {
		return nil, err
	}

	converted := r.apply(
		s.sb.Select("COUNT(*)").From("leads").Where("LOWER(status) = 'converted'"),
		"created_at",
	)
	if err = s.queryRow(ctx, converted, &out.ConvertedLeads); err != nil {
		return nil, fmt.Errorf("failed to count converted leads: %w", err)
	}
	out.ConversionRate = FormatPercent(out.ConvertedLeads, out.TotalLeads)

	if out.LeadSourceDistribution, err = s.distribution(ctx, "leads", "source", "created_at", r, 0); err != nil {
		return nil, err
	}
	if out.LeadStatusDistribution, err = s.distribution(ctx, "leads", "status", "created_at", r, 0); err != nil {
		return nil, err
	}

	followUps := s.sb.Select("COUNT(*)").From("follow_ups f")
	if !r.IsZero() {
		followUps = r.apply(followUps.Join("leads l ON l.id = f.lead_id"), "l.created_at")
	}
	if err = s.queryRow(ctx, followUps, &out.TotalFollowUps); err != nil {
		return nil, fmt.Errorf("failed to count follow-ups: %w", err)
	}
	out.AvgFollowUpsPerLead = FormatRatio(out.TotalFollowUps, out.TotalLeads)

	return &out, nil
}
