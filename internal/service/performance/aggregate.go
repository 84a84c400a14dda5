package performance

import (
	"context"
	"fmt"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/shopspring/decimal"
)

// Aggregate computes the metrics of every angle in the campaign from all
// stored rows, whatever batch they came from. Angles without rows are
// included with zero counters. Results are never cached.
func (s *Service) Aggregate(ctx context.Context, campaignID string) ([]domain.AggregatedMetrics, error) {
	campaign, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	angles, err := s.angles.ListAngles(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("list angles: %w", err)
	}
	sums, err := s.rows.SumByAngle(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("sum rows: %w", err)
	}

	out := make([]domain.AggregatedMetrics, 0, len(angles))
	for _, a := range angles {
		out = append(out, Derive(a.ID, sums[a.ID]))
	}
	return out, nil
}

// Derive computes the ratios for one angle's totals.
//
// CTR of an angle that was never shown is 0, while CPA without conversions
// and ROAS without spend are undefined and stay nil.
func Derive(angleID string, t domain.Totals) domain.AggregatedMetrics {
	m := domain.AggregatedMetrics{AngleID: angleID, Totals: t}
	if t.Impressions > 0 {
		m.CTR = float64(t.Clicks) * 100 / float64(t.Impressions)
	}
	if t.Conversions > 0 {
		cpa := t.Spend.Div(decimal.NewFromInt(t.Conversions)).InexactFloat64()
		m.CPA = &cpa
	}
	if t.Spend.IsPositive() {
		roas := t.Revenue.Div(t.Spend).InexactFloat64()
		m.ROAS = &roas
	}
	return m
}

// Sum folds rows into per-angle totals. Repositories without a query engine
// use it to answer SumByAngle.
func Sum(rows []domain.PerformanceRow) map[string]domain.Totals {
	out := make(map[string]domain.Totals)
	for _, r := range rows {
		out[r.AngleID] = out[r.AngleID].Add(r)
	}
	return out
}
