package performance

import (
	"context"

	"github.com/ignite/copyloop/internal/domain"
)

// DefaultChunkSize is the number of rows validated and written together.
const DefaultChunkSize = 500

// Options tunes a Service. Zero values are replaced with defaults.
type Options struct {
	ChunkSize int
	Archiver  Archiver
	Recorder  Recorder
}

// Service implements performance import and aggregation. All public methods
// are safe for concurrent use if the underlying repositories are.
type Service struct {
	campaigns CampaignRepository
	angles    AngleRepository
	rows      RowRepository
	ledger    *Ledger
	archiver  Archiver
	recorder  Recorder
	chunkSize int
}

// NewService creates a performance service backed by the given repositories.
func NewService(campaigns CampaignRepository, angles AngleRepository, rows RowRepository, batches BatchRepository, opts Options) *Service {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Service{
		campaigns: campaigns,
		angles:    angles,
		rows:      rows,
		ledger:    NewLedger(batches),
		archiver:  opts.Archiver,
		recorder:  opts.Recorder,
		chunkSize: opts.ChunkSize,
	}
}

// GetBatch returns one import batch.
func (s *Service) GetBatch(ctx context.Context, id string) (*domain.ImportBatch, error) {
	return s.ledger.Get(ctx, id)
}

// ListBatches returns a campaign's import batches, most recent first.
func (s *Service) ListBatches(ctx context.Context, campaignID string, limit int) ([]domain.ImportBatch, error) {
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.ledger.ListByCampaign(ctx, campaignID, limit)
}
