package api

import (
	"context"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/service/optimization"
	"github.com/ignite/copyloop/internal/service/performance"
)

// DefaultMaxUploadBytes bounds a multipart import body.
const DefaultMaxUploadBytes = 32 << 20

// PerformanceService is the import and aggregation surface the handlers use.
type PerformanceService interface {
	Import(ctx context.Context, in performance.ImportInput) (*performance.ImportResult, error)
	GetBatch(ctx context.Context, id string) (*domain.ImportBatch, error)
	ListBatches(ctx context.Context, campaignID string, limit int) ([]domain.ImportBatch, error)
	Aggregate(ctx context.Context, campaignID string) ([]domain.AggregatedMetrics, error)
}

// OptimizationService is the winner selection and iteration surface.
type OptimizationService interface {
	SelectWinners(ctx context.Context, campaignID string, topN int, metric domain.Metric) (*optimization.Analysis, error)
	GenerateIterations(ctx context.Context, campaignID string, topN, count int) ([]domain.Angle, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	performance    PerformanceService
	optimization   OptimizationService
	maxUploadBytes int64
}

// NewHandlers creates a new Handlers instance. maxUploadBytes <= 0 uses
// DefaultMaxUploadBytes.
func NewHandlers(perf PerformanceService, opt OptimizationService, maxUploadBytes int64) *Handlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handlers{
		performance:    perf,
		optimization:   opt,
		maxUploadBytes: maxUploadBytes,
	}
}
