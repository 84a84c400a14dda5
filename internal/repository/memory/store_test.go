package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/service/performance"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowWriter_RollbackDiscards(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.PutCampaign(domain.Campaign{ID: "c1"})
	s.PutAngle(domain.Angle{ID: "a1", CampaignID: "c1"})

	w, err := s.BeginRows(ctx, "b1")
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, []domain.PerformanceRow{{ID: "r1", AngleID: "a1", Impressions: 10}}))
	assert.Empty(t, s.Rows(), "staged rows must not be visible before commit")

	require.NoError(t, w.Rollback())
	assert.Empty(t, s.Rows())
	assert.Error(t, w.Write(ctx, nil))
}

func TestRowWriter_CommitPublishes(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.PutAngle(domain.Angle{ID: "a1", CampaignID: "c1"})
	s.PutAngle(domain.Angle{ID: "a2", CampaignID: "c2"})

	w, _ := s.BeginRows(ctx, "b1")
	require.NoError(t, w.Write(ctx, []domain.PerformanceRow{
		{ID: "r1", AngleID: "a1", Impressions: 10, Spend: decimal.NewFromInt(2)},
		{ID: "r2", AngleID: "a1", Impressions: 5, Spend: decimal.NewFromInt(3)},
		{ID: "r3", AngleID: "a2", Impressions: 7},
	}))
	require.NoError(t, w.Commit())
	assert.Error(t, w.Commit())

	sums, err := s.SumByAngle(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, int64(15), sums["a1"].Impressions)
	assert.Equal(t, int64(2), sums["a1"].RowCount)
	assert.True(t, sums["a1"].Spend.Equal(decimal.NewFromInt(5)))
}

func TestCompleteBatch_OnlyOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateBatch(ctx, &domain.ImportBatch{ID: "b1", CampaignID: "c1", Status: domain.BatchProcessing}))

	out := domain.BatchOutcome{Status: domain.BatchCompleted, RowsTotal: 1, RowsProcessed: 1, CompletedAt: time.Now()}
	require.NoError(t, s.CompleteBatch(ctx, "b1", out))
	assert.ErrorIs(t, s.CompleteBatch(ctx, "b1", out), performance.ErrBatchClosed)
	assert.ErrorIs(t, s.CompleteBatch(ctx, "missing", out), performance.ErrBatchNotFound)

	b, err := s.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCompleted, b.Status)
	require.NotNil(t, b.CompletedAt)
}

func TestListBatches_NewestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"b1", "b2", "b3"} {
		require.NoError(t, s.CreateBatch(ctx, &domain.ImportBatch{
			ID: id, CampaignID: "c1", Status: domain.BatchProcessing, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.CreateBatch(ctx, &domain.ImportBatch{ID: "other", CampaignID: "c2", CreatedAt: base}))

	got, err := s.ListBatches(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b3", got[0].ID)
	assert.Equal(t, "b2", got[1].ID)
}

func TestMarkWinners_ScopedToCampaign(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.PutAngle(domain.Angle{ID: "a1", CampaignID: "c1"})
	s.PutAngle(domain.Angle{ID: "a2", CampaignID: "c2"})

	require.NoError(t, s.MarkWinners(ctx, "c1", []string{"a1", "a2"}))

	winners, err := s.ListWinners(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, "a1", winners[0].ID)
	a2, _ := s.Angle("a2")
	assert.False(t, a2.IsWinner)
}

func TestCreateAngles_RejectsDuplicates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.PutAngle(domain.Angle{ID: "a1", CampaignID: "c1"})

	err := s.CreateAngles(ctx, []domain.Angle{{ID: "a2", CampaignID: "c1"}, {ID: "a1", CampaignID: "c1"}})
	assert.Error(t, err)
	_, ok := s.Angle("a2")
	assert.False(t, ok, "a failed create must not persist any angle")
}
