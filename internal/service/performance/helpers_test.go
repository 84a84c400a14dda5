package performance_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/repository/memory"
	"github.com/ignite/copyloop/internal/service/performance"
	"github.com/stretchr/testify/require"
)

const (
	campaignID = "7f1d6a52-3c1e-4b8a-9a55-0f6f4b7c2d01"
	otherCamp  = "0b0c6e2a-5d4f-4e3a-8c1b-2a9d7e6f5c02"
	angleA     = "11111111-1111-4111-8111-111111111111"
	angleB     = "22222222-2222-4222-8222-222222222222"
	angleC     = "33333333-3333-4333-8333-333333333333"
	foreign    = "44444444-4444-4444-8444-444444444444"
	missing    = "55555555-5555-4555-8555-555555555555"
)

const header = "angle_id,impressions,clicks,conversions,spend,revenue,platform,locale,date_start,date_end\n"

// seededStore returns a store with two campaigns. angleA..angleC belong to
// campaignID and foreign belongs to otherCamp.
func seededStore() *memory.Store {
	s := memory.NewStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.PutCampaign(domain.Campaign{ID: campaignID, Name: "Spring launch", CreatedAt: base})
	s.PutCampaign(domain.Campaign{ID: otherCamp, Name: "Other", CreatedAt: base})
	for i, id := range []string{angleA, angleB, angleC} {
		s.PutAngle(domain.Angle{
			ID: id, CampaignID: campaignID, Headline: "h" + id[:1],
			Status: domain.AngleStatusApproved, Source: domain.SourceGenerated,
			Version: domain.InitialAngleVersion, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	s.PutAngle(domain.Angle{ID: foreign, CampaignID: otherCamp, CreatedAt: base})
	return s
}

func newService(s *memory.Store, opts performance.Options) *performance.Service {
	return performance.NewService(s, s, s, s, opts)
}

func runImport(t *testing.T, svc *performance.Service, csv string) *performance.ImportResult {
	t.Helper()
	res, err := svc.Import(context.Background(), performance.ImportInput{
		CampaignID: campaignID, Filename: "metrics.csv", Body: strings.NewReader(csv),
	})
	require.NoError(t, err)
	return res
}

// countingRows wraps a store to observe angle lookups made by its writers.
type countingRows struct {
	performance.RowRepository
	mu      sync.Mutex
	calls   int
	lookups []string
}

func (c *countingRows) BeginRows(ctx context.Context, batchID string) (performance.RowWriter, error) {
	w, err := c.RowRepository.BeginRows(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return &countingWriter{RowWriter: w, rows: c}, nil
}

type countingWriter struct {
	performance.RowWriter
	rows *countingRows
}

func (w *countingWriter) LookupOwners(ctx context.Context, ids []string) (map[string]string, error) {
	w.rows.mu.Lock()
	w.rows.calls++
	w.rows.lookups = append(w.rows.lookups, ids...)
	w.rows.mu.Unlock()
	return w.RowWriter.LookupOwners(ctx, ids)
}

// cancelAware fails every call once ctx is done, the way a database driver
// does.
type cancelAware struct {
	*memory.Store
}

func (c cancelAware) BeginRows(ctx context.Context, batchID string) (performance.RowWriter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := c.Store.BeginRows(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return cancelAwareWriter{RowWriter: w}, nil
}

func (c cancelAware) CompleteBatch(ctx context.Context, id string, out domain.BatchOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Store.CompleteBatch(ctx, id, out)
}

// cancelAfterHeader cancels the caller's context on the first read, like a
// client that disconnects while its upload is being processed.
type cancelAfterHeader struct {
	r      io.Reader
	cancel context.CancelFunc
}

func (c *cancelAfterHeader) Read(p []byte) (int, error) {
	c.cancel()
	return c.r.Read(p)
}

type cancelAwareWriter struct {
	performance.RowWriter
}

func (w cancelAwareWriter) LookupOwners(ctx context.Context, ids []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return w.RowWriter.LookupOwners(ctx, ids)
}

func (w cancelAwareWriter) Write(ctx context.Context, rows []domain.PerformanceRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.RowWriter.Write(ctx, rows)
}

// failingRows fails every write after the first n rows.
type failingRows struct {
	performance.RowRepository
	allow int
}

func (f *failingRows) BeginRows(ctx context.Context, batchID string) (performance.RowWriter, error) {
	w, err := f.RowRepository.BeginRows(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return &failingWriter{RowWriter: w, allow: f.allow}, nil
}

type failingWriter struct {
	performance.RowWriter
	allow int
}

func (w *failingWriter) Write(ctx context.Context, rows []domain.PerformanceRow) error {
	if len(rows) > w.allow {
		return errors.New("connection reset")
	}
	w.allow -= len(rows)
	return w.RowWriter.Write(ctx, rows)
}

type fakeArchiver struct {
	mu   sync.Mutex
	keys []string
	body []string
	err  error
}

func (f *fakeArchiver) Archive(_ context.Context, key string, body io.Reader) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.body = append(f.body, string(b))
	return nil
}

type fakeRecorder struct {
	statuses []domain.BatchStatus
	accepted int
	failed   int
}

func (f *fakeRecorder) ImportFinished(status domain.BatchStatus, accepted, failed int) {
	f.statuses = append(f.statuses, status)
	f.accepted += accepted
	f.failed += failed
}
