package optimization

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/pkg/logger"
)

// GenerateIterations creates count draft angles descending from the
// campaign's flagged winners. Selection is not re-run; without winners the
// call fails with ErrNoWinners and the generator is never called.
//
// Up to topN winners seed the generator. Draft i is parented to seed
// i mod len(seeds).
func (s *Service) GenerateIterations(ctx context.Context, campaignID string, topN, count int) ([]domain.Angle, error) {
	topN, err := resolveTopN(topN)
	if err != nil {
		return nil, err
	}
	if count < 1 || count > s.maxIterations {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidInput, s.maxIterations)
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

	winners, err := s.angles.ListWinners(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("list winners: %w", err)
	}
	if len(winners) == 0 {
		return nil, ErrNoWinners
	}
	if len(winners) > topN {
		winners = winners[:topN]
	}

	metrics, err := s.metrics.Aggregate(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("aggregate metrics: %w", err)
	}
	byAngle := make(map[string]domain.AggregatedMetrics, len(metrics))
	for _, m := range metrics {
		byAngle[m.AngleID] = m
	}

	samples := make([]domain.WinnerSample, len(winners))
	seeds := make([]domain.AngleDraft, len(winners))
	for i := range winners {
		m, ok := byAngle[winners[i].ID]
		if !ok {
			m = domain.AggregatedMetrics{AngleID: winners[i].ID}
		}
		seeds[i] = winners[i].Content()
		samples[i] = domain.WinnerSample{Angle: seeds[i], Metrics: m}
	}

	pa, err := s.analyze(ctx, samples)
	if err != nil {
		return nil, err
	}
	drafts, err := s.generate(ctx, domain.GenerateRequest{
		Seeds:    seeds,
		Patterns: pa,
		Product:  campaign.Brief(),
		Count:    count,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	angles := make([]domain.Angle, len(drafts))
	for i, d := range drafts {
		parent := winners[i%len(winners)].ID
		angles[i] = domain.Angle{
			ID:            uuid.New().String(),
			CampaignID:    campaign.ID,
			Headline:      d.Headline,
			Body:          d.Body,
			CTA:           d.CTA,
			Status:        domain.AngleStatusDraft,
			Source:        domain.SourceIteration,
			ParentAngleID: &parent,
			Version:       domain.InitialAngleVersion,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	if err := s.angles.CreateAngles(ctx, angles); err != nil {
		return nil, fmt.Errorf("create angles: %w", err)
	}

	logger.Info("iterations generated",
		"campaign_id", campaign.ID,
		"seeds", len(winners),
		"created", len(angles),
	)
	return angles, nil
}
