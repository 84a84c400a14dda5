package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/service/performance"
)

func (s *Store) CreateBatch(_ context.Context, b *domain.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[b.ID]; ok {
		return fmt.Errorf("batch %s already exists", b.ID)
	}
	cp := *b
	cp.Errors = append([]domain.RowError{}, b.Errors...)
	s.batches[b.ID] = cp
	s.batchSeq = append(s.batchSeq, b.ID)
	return nil
}

func (s *Store) CompleteBatch(_ context.Context, id string, out domain.BatchOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return performance.ErrBatchNotFound
	}
	if b.Status != domain.BatchProcessing {
		return performance.ErrBatchClosed
	}
	completed := out.CompletedAt
	b.Status = out.Status
	b.RowsTotal = out.RowsTotal
	b.RowsProcessed = out.RowsProcessed
	b.RowsFailed = out.RowsFailed
	b.Errors = append([]domain.RowError{}, out.Errors...)
	b.ArchiveKey = out.ArchiveKey
	b.CompletedAt = &completed
	s.batches[id] = b
	return nil
}

func (s *Store) GetBatch(_ context.Context, id string) (*domain.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, performance.ErrBatchNotFound
	}
	return &b, nil
}

// ListBatches returns the newest batches first. Batches created in the same
// instant keep reverse insertion order.
func (s *Store) ListBatches(_ context.Context, campaignID string, limit int) ([]domain.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.ImportBatch{}
	for i := len(s.batchSeq) - 1; i >= 0; i-- {
		b := s.batches[s.batchSeq[i]]
		if b.CampaignID != campaignID {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- rows ----

func (s *Store) BeginRows(_ context.Context, batchID string) (performance.RowWriter, error) {
	return &rowWriter{store: s, batchID: batchID}, nil
}

func (s *Store) SumByAngle(_ context.Context, campaignID string) (map[string]domain.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []domain.PerformanceRow
	for _, r := range s.rows {
		if a, ok := s.angles[r.AngleID]; ok && a.CampaignID == campaignID {
			rows = append(rows, r)
		}
	}
	return performance.Sum(rows), nil
}

// rowWriter stages rows until Commit, mirroring a database transaction.
type rowWriter struct {
	mu      sync.Mutex
	store   *Store
	batchID string
	staged  []domain.PerformanceRow
	done    bool
}

func (w *rowWriter) LookupOwners(ctx context.Context, ids []string) (map[string]string, error) {
	return w.store.LookupOwners(ctx, ids)
}

func (w *rowWriter) Write(_ context.Context, rows []domain.PerformanceRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return fmt.Errorf("row writer for batch %s is closed", w.batchID)
	}
	w.staged = append(w.staged, rows...)
	return nil
}

func (w *rowWriter) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return fmt.Errorf("row writer for batch %s is closed", w.batchID)
	}
	w.done = true
	w.store.mu.Lock()
	w.store.rows = append(w.store.rows, w.staged...)
	w.store.mu.Unlock()
	w.staged = nil
	return nil
}

func (w *rowWriter) Rollback() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.done = true
	w.staged = nil
	return nil
}
