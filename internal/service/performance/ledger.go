package performance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/copyloop/internal/domain"
)

// DefaultListLimit caps ListByCampaign when no limit is given.
const DefaultListLimit = 50

// Ledger owns the lifecycle of import batches:
//
//	processing -> completed | partial | failed
//
// A batch is closed exactly once and never changes afterwards. There are no
// automatic retries; a failed or partial upload is re-imported as a new batch.
type Ledger struct {
	repo BatchRepository
	now  func() time.Time
}

// NewLedger creates a ledger backed by the given repository.
func NewLedger(repo BatchRepository) *Ledger {
	return &Ledger{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Open records a new batch in processing state.
func (l *Ledger) Open(ctx context.Context, campaignID, filename string) (*domain.ImportBatch, error) {
	b := &domain.ImportBatch{
		ID:         uuid.New().String(),
		CampaignID: campaignID,
		Filename:   filename,
		Errors:     []domain.RowError{},
		Status:     domain.BatchProcessing,
		CreatedAt:  l.now(),
	}
	if err := l.repo.CreateBatch(ctx, b); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	return b, nil
}

// Close writes the terminal outcome and mirrors it onto b.
func (l *Ledger) Close(ctx context.Context, b *domain.ImportBatch, out domain.BatchOutcome) error {
	if b.Status.IsTerminal() {
		return ErrBatchClosed
	}
	if !out.Status.IsTerminal() {
		return fmt.Errorf("%w: %q is not a terminal batch status", ErrInvalidInput, out.Status)
	}
	if out.CompletedAt.IsZero() {
		out.CompletedAt = l.now()
	}
	if out.Errors == nil {
		out.Errors = []domain.RowError{}
	}
	if err := l.repo.CompleteBatch(ctx, b.ID, out); err != nil {
		return err
	}

	b.Status = out.Status
	b.RowsTotal = out.RowsTotal
	b.RowsProcessed = out.RowsProcessed
	b.RowsFailed = out.RowsFailed
	b.Errors = out.Errors
	b.ArchiveKey = out.ArchiveKey
	completed := out.CompletedAt
	b.CompletedAt = &completed
	return nil
}

// Get returns one batch. Returns ErrBatchNotFound if it doesn't exist.
func (l *Ledger) Get(ctx context.Context, id string) (*domain.ImportBatch, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrBatchNotFound
	}
	return l.repo.GetBatch(ctx, id)
}

// ListByCampaign returns a campaign's batches, most recent first.
func (l *Ledger) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.ImportBatch, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return l.repo.ListBatches(ctx, campaignID, limit)
}

// ResolveStatus picks the terminal status for a fully scanned file.
func ResolveStatus(total, processed, failed int) domain.BatchStatus {
	switch {
	case total == 0:
		return domain.BatchCompleted
	case processed == 0:
		return domain.BatchFailed
	case failed == 0:
		return domain.BatchCompleted
	default:
		return domain.BatchPartial
	}
}
