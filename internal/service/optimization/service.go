package optimization

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/pkg/logger"
)

const (
	// DefaultTopN is used when a caller passes topN == 0.
	DefaultTopN = 3
	// DefaultMaxIterations caps the drafts requested in one iteration.
	DefaultMaxIterations = 20
)

// Options tunes a Service. Zero values are replaced with defaults.
type Options struct {
	MaxIterations int
	Locker        Locker
	Recorder      Recorder
}

// Service implements winner selection and iteration. All public methods are
// safe for concurrent use if the underlying repositories and generator are.
type Service struct {
	campaigns     CampaignRepository
	angles        AngleRepository
	metrics       MetricsSource
	generator     Generator
	locker        Locker
	recorder      Recorder
	maxIterations int
	now           func() time.Time
}

// NewService creates an optimization service. A nil Locker disables
// per-campaign locking.
func NewService(campaigns CampaignRepository, angles AngleRepository, metrics MetricsSource, gen Generator, opts Options) *Service {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Service{
		campaigns:     campaigns,
		angles:        angles,
		metrics:       metrics,
		generator:     gen,
		locker:        opts.Locker,
		recorder:      opts.Recorder,
		maxIterations: opts.MaxIterations,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func resolveTopN(topN int) (int, error) {
	if topN < 0 {
		return 0, fmt.Errorf("%w: top_n must not be negative", ErrInvalidInput)
	}
	if topN == 0 {
		return DefaultTopN, nil
	}
	return topN, nil
}

// lock serializes selection and iteration per campaign. The returned
// release func is always safe to call.
func (s *Service) lock(ctx context.Context, campaignID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	l := s.locker.NewLock("optimize:" + campaignID)
	ok, err := l.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire campaign lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() {
		if err := l.Release(context.Background()); err != nil {
			logger.Warn("release campaign lock failed", "campaign_id", campaignID, "error", err)
		}
	}, nil
}

func (s *Service) analyze(ctx context.Context, samples []domain.WinnerSample) (domain.PatternAnalysis, error) {
	pa, err := s.generator.AnalyzePatterns(ctx, samples)
	s.recorder.GeneratorCall("analyze_patterns", err)
	if err != nil {
		return domain.PatternAnalysis{}, fmt.Errorf("%w: analyze patterns: %v", ErrGeneratorUnavailable, err)
	}
	if pa.Patterns == nil {
		pa.Patterns = []string{}
	}
	if pa.Recommendations == nil {
		pa.Recommendations = []string{}
	}
	return pa, nil
}

func (s *Service) generate(ctx context.Context, req domain.GenerateRequest) ([]domain.AngleDraft, error) {
	drafts, err := s.generator.GenerateVariants(ctx, req)
	s.recorder.GeneratorCall("generate_variants", err)
	if err != nil {
		return nil, fmt.Errorf("%w: generate variants: %v", ErrGeneratorUnavailable, err)
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: generator returned no drafts", ErrGeneratorUnavailable)
	}
	if len(drafts) > req.Count {
		drafts = drafts[:req.Count]
	}
	return drafts, nil
}
