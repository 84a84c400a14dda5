package optimization

import (
	"context"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/pkg/distlock"
)

// CampaignRepository resolves campaigns. Returns performance.ErrCampaignNotFound
// if the campaign doesn't exist.
type CampaignRepository interface {
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)
}

// AngleRepository is the angle storage used by selection and iteration.
// Implementations must be safe for concurrent use.
type AngleRepository interface {
	// ListWinners returns the flagged angles of a campaign ordered by
	// created_at, id.
	ListWinners(ctx context.Context, campaignID string) ([]domain.Angle, error)

	// MarkWinners sets is_winner on the given angles. Flags are never cleared.
	MarkWinners(ctx context.Context, campaignID string, ids []string) error

	// CreateAngles persists new angles in one call.
	CreateAngles(ctx context.Context, angles []domain.Angle) error

	// GetAngles returns the named angles of a campaign. Missing ids are
	// skipped.
	GetAngles(ctx context.Context, campaignID string, ids []string) ([]domain.Angle, error)
}

// MetricsSource computes per-angle metrics for a campaign.
type MetricsSource interface {
	Aggregate(ctx context.Context, campaignID string) ([]domain.AggregatedMetrics, error)
}

// Generator is the external content capability.
type Generator interface {
	AnalyzePatterns(ctx context.Context, winners []domain.WinnerSample) (domain.PatternAnalysis, error)
	GenerateVariants(ctx context.Context, req domain.GenerateRequest) ([]domain.AngleDraft, error)
}

// Locker hands out per-key distributed locks.
type Locker interface {
	NewLock(key string) distlock.DistLock
}

// Recorder observes generator calls.
type Recorder interface {
	GeneratorCall(op string, err error)
}

type nopRecorder struct{}

func (nopRecorder) GeneratorCall(string, error) {}
