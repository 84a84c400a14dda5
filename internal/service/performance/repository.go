package performance

import (
	"context"
	"io"

	"github.com/ignite/copyloop/internal/domain"
)

// CampaignRepository resolves campaigns. Returns ErrCampaignNotFound if the
// campaign doesn't exist.
type CampaignRepository interface {
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)
}

// AngleRepository is the read side of angle storage used by aggregation.
type AngleRepository interface {
	// ListAngles returns every angle of a campaign ordered by created_at, id.
	ListAngles(ctx context.Context, campaignID string) ([]domain.Angle, error)
}

// BatchRepository persists the import ledger.
// Implementations must be safe for concurrent use.
type BatchRepository interface {
	CreateBatch(ctx context.Context, b *domain.ImportBatch) error

	// CompleteBatch writes the terminal outcome. Returns ErrBatchClosed if
	// the batch is no longer processing and ErrBatchNotFound if it is missing.
	CompleteBatch(ctx context.Context, id string, out domain.BatchOutcome) error

	GetBatch(ctx context.Context, id string) (*domain.ImportBatch, error)

	// ListBatches returns a campaign's batches, most recent first.
	ListBatches(ctx context.Context, campaignID string, limit int) ([]domain.ImportBatch, error)
}

// RowRepository stores performance rows and sums them per angle.
type RowRepository interface {
	// BeginRows opens a write session for one batch. Nothing written through
	// it is visible until Commit.
	BeginRows(ctx context.Context, batchID string) (RowWriter, error)

	// SumByAngle returns the totals of every angle of the campaign that has
	// at least one row.
	SumByAngle(ctx context.Context, campaignID string) (map[string]domain.Totals, error)
}

// RowWriter buffers inserts for a single import. Owner lookups run in the
// same session as the writes so an import never needs a second connection.
type RowWriter interface {
	// LookupOwners returns the owning campaign id for every angle id that
	// exists. Unknown ids are absent from the map.
	LookupOwners(ctx context.Context, ids []string) (map[string]string, error)
	Write(ctx context.Context, rows []domain.PerformanceRow) error
	Commit() error
	Rollback() error
}

// Archiver keeps a copy of the raw upload.
type Archiver interface {
	Archive(ctx context.Context, key string, body io.Reader) error
}

// Recorder observes finished imports.
type Recorder interface {
	ImportFinished(status domain.BatchStatus, accepted, failed int)
}

type nopRecorder struct{}

func (nopRecorder) ImportFinished(domain.BatchStatus, int, int) {}
