package optimization

import (
	"context"
	"fmt"
	"sort"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/pkg/logger"
)

// NoDataRecommendation is returned when a campaign has no performance rows.
const NoDataRecommendation = "Import performance data for this campaign before selecting winners."

// TopPerformer is a selected angle together with the metrics it won on.
type TopPerformer struct {
	Angle   domain.Angle             `json:"angle"`
	Metrics domain.AggregatedMetrics `json:"metrics"`
}

// Analysis is the result of one selection round.
type Analysis struct {
	Metric          domain.Metric  `json:"metric"`
	TopPerformers   []TopPerformer `json:"top_performers"`
	Patterns        []string       `json:"patterns"`
	Recommendations []string       `json:"recommendations"`
}

// SelectWinners ranks the campaign's angles by metric, flags the best topN
// as winners and asks the generator what they have in common.
//
// Flags are additive: angles that won an earlier round keep their flag. A
// generator failure is returned as ErrGeneratorUnavailable after the flags
// were written.
func (s *Service) SelectWinners(ctx context.Context, campaignID string, topN int, metric domain.Metric) (*Analysis, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("%w: unknown metric %q", ErrInvalidInput, metric)
	}
	topN, err := resolveTopN(topN)
	if err != nil {
		return nil, err
	}
	campaign, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	release, err := s.lock(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	metrics, err := s.metrics.Aggregate(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("aggregate metrics: %w", err)
	}
	if !hasRows(metrics) {
		return &Analysis{
			Metric:          metric,
			TopPerformers:   []TopPerformer{},
			Patterns:        []string{},
			Recommendations: []string{NoDataRecommendation},
		}, nil
	}

	Rank(metrics, metric)
	if len(metrics) > topN {
		metrics = metrics[:topN]
	}

	ids := make([]string, len(metrics))
	for i, m := range metrics {
		ids[i] = m.AngleID
	}
	if err := s.angles.MarkWinners(ctx, campaign.ID, ids); err != nil {
		return nil, fmt.Errorf("mark winners: %w", err)
	}
	angles, err := s.angles.GetAngles(ctx, campaign.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("load winners: %w", err)
	}
	byID := make(map[string]domain.Angle, len(angles))
	for _, a := range angles {
		byID[a.ID] = a
	}

	performers := make([]TopPerformer, 0, len(metrics))
	samples := make([]domain.WinnerSample, 0, len(metrics))
	for _, m := range metrics {
		a, ok := byID[m.AngleID]
		if !ok {
			continue
		}
		a.IsWinner = true
		performers = append(performers, TopPerformer{Angle: a, Metrics: m})
		samples = append(samples, domain.WinnerSample{Angle: a.Content(), Metrics: m})
	}

	pa, err := s.analyze(ctx, samples)
	if err != nil {
		return nil, err
	}

	logger.Info("winners selected",
		"campaign_id", campaign.ID,
		"metric", metric,
		"top_n", topN,
		"winners", len(performers),
	)
	return &Analysis{
		Metric:          metric,
		TopPerformers:   performers,
		Patterns:        pa.Patterns,
		Recommendations: pa.Recommendations,
	}, nil
}

// Rank sorts metrics best first. The sort is stable so ties keep the
// repository order. A nil ROAS ranks as 0.
func Rank(metrics []domain.AggregatedMetrics, metric domain.Metric) {
	sort.SliceStable(metrics, func(i, j int) bool {
		return score(metrics[i], metric) > score(metrics[j], metric)
	})
}

func score(m domain.AggregatedMetrics, metric domain.Metric) float64 {
	switch metric {
	case domain.MetricROAS:
		if m.ROAS == nil {
			return 0
		}
		return *m.ROAS
	case domain.MetricConversions:
		return float64(m.Conversions)
	default:
		return m.CTR
	}
}

func hasRows(metrics []domain.AggregatedMetrics) bool {
	for _, m := range metrics {
		if m.RowCount > 0 {
			return true
		}
	}
	return false
}
