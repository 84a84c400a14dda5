package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/service/performance"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	campaignID = "7f1d6a52-3c1e-4b8a-9a55-0f6f4b7c2d01"
	angleA     = "11111111-1111-4111-8111-111111111111"
	angleB     = "22222222-2222-4222-8222-222222222222"
	batchID    = "99999999-9999-4999-8999-999999999999"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "($1, $2)", placeholders(1, 2))
	assert.Equal(t, "($1, $2, $3), ($4, $5, $6)", placeholders(2, 3))
}

func TestGetCampaign(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, name, .* FROM campaigns\s+WHERE id = \$1`).
		WithArgs(campaignID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "product_description", "target_audience", "created_at"}).
			AddRow(campaignID, "Trail shoes", "Lightweight runner", "hikers", now))

	c, err := NewCampaignRepo(db).GetCampaign(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, "Trail shoes", c.Name)
	assert.Equal(t, "Lightweight runner", c.ProductDescription)
}

func TestGetCampaign_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM campaigns`).WithArgs(campaignID).WillReturnError(sql.ErrNoRows)

	repo := NewCampaignRepo(db)
	_, err := repo.GetCampaign(context.Background(), campaignID)
	assert.ErrorIs(t, err, performance.ErrCampaignNotFound)

	// malformed ids never reach the database
	_, err = repo.GetCampaign(context.Background(), "nope")
	assert.ErrorIs(t, err, performance.ErrCampaignNotFound)
}

func angleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "campaign_id", "headline", "body", "cta", "status", "source",
		"is_winner", "parent_angle_id", "version", "created_at", "updated_at",
	})
}

func TestListWinners(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM angles\s+WHERE campaign_id = \$1 AND is_winner\s+ORDER BY created_at, id`).
		WithArgs(campaignID).
		WillReturnRows(angleRows().
			AddRow(angleA, campaignID, "H1", "B1", "C1", "approved", "generated", true, nil, 1, now, now).
			AddRow(angleB, campaignID, "H2", "B2", "C2", "draft", "iteration", true, angleA, 1, now, now))

	got, err := NewAngleRepo(db).ListWinners(context.Background(), campaignID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].ParentAngleID)
	require.NotNil(t, got[1].ParentAngleID)
	assert.Equal(t, angleA, *got[1].ParentAngleID)
	assert.Equal(t, domain.SourceIteration, got[1].Source)
	assert.True(t, got[0].IsWinner)
}

func TestMarkWinners(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE angles SET is_winner = TRUE`).
		WithArgs(campaignID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	repo := NewAngleRepo(db)
	require.NoError(t, repo.MarkWinners(context.Background(), campaignID, []string{angleA, angleB}))
	require.NoError(t, repo.MarkWinners(context.Background(), campaignID, nil))
}

func TestCreateAngles_SingleStatement(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	parent := angleA
	mock.ExpectExec(`INSERT INTO angles .* VALUES \(\$1, .*\$12\), \(\$13, .*\$24\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := NewAngleRepo(db).CreateAngles(context.Background(), []domain.Angle{
		{ID: "n1", CampaignID: campaignID, Headline: "x", Status: domain.AngleStatusDraft, Source: domain.SourceIteration, ParentAngleID: &parent, Version: 1, CreatedAt: now, UpdatedAt: now},
		{ID: "n2", CampaignID: campaignID, Headline: "y", Status: domain.AngleStatusDraft, Source: domain.SourceIteration, ParentAngleID: &parent, Version: 1, CreatedAt: now, UpdatedAt: now},
	})
	require.NoError(t, err)
}

func TestCreateBatch(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO import_batches`).
		WithArgs(batchID, campaignID, "m.csv", 0, 0, 0, []byte("[]"), "processing", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewBatchRepo(db).CreateBatch(context.Background(), &domain.ImportBatch{
		ID: batchID, CampaignID: campaignID, Filename: "m.csv", Status: domain.BatchProcessing, CreatedAt: now,
	})
	require.NoError(t, err)
}

func TestCompleteBatch(t *testing.T) {
	db, mock := newMock(t)
	done := time.Now().UTC()
	mock.ExpectExec(`UPDATE import_batches\s+SET status = \$2.*WHERE id = \$1 AND status = 'processing'`).
		WithArgs(batchID, "partial", 2, 1, 1, []byte(`[{"row":3,"code":"negative_value","message":"bad"}]`), nil, done).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewBatchRepo(db).CompleteBatch(context.Background(), batchID, domain.BatchOutcome{
		Status: domain.BatchPartial, RowsTotal: 2, RowsProcessed: 1, RowsFailed: 1,
		Errors:      []domain.RowError{{Row: 3, Code: domain.CodeNegativeValue, Message: "bad"}},
		CompletedAt: done,
	})
	require.NoError(t, err)
}

func TestCompleteBatch_AlreadyClosedOrMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBatchRepo(db)
	out := domain.BatchOutcome{Status: domain.BatchCompleted, CompletedAt: time.Now()}

	mock.ExpectExec(`UPDATE import_batches`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(batchID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	assert.ErrorIs(t, repo.CompleteBatch(context.Background(), batchID, out), performance.ErrBatchClosed)

	mock.ExpectExec(`UPDATE import_batches`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(batchID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	assert.ErrorIs(t, repo.CompleteBatch(context.Background(), batchID, out), performance.ErrBatchNotFound)
}

func batchRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "campaign_id", "filename", "rows_total", "rows_processed", "rows_failed",
		"errors", "status", "archive_key", "created_at", "completed_at",
	})
}

func TestGetBatch(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM import_batches\s+WHERE id = \$1`).
		WithArgs(batchID).
		WillReturnRows(batchRows().AddRow(batchID, campaignID, "m.csv", 2, 1, 1,
			[]byte(`[{"row":2,"code":"angle_not_found","message":"missing"}]`), "partial", "imports/k", now, now))

	b, err := NewBatchRepo(db).GetBatch(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchPartial, b.Status)
	require.Len(t, b.Errors, 1)
	assert.Equal(t, domain.CodeAngleNotFound, b.Errors[0].Code)
	assert.Equal(t, "imports/k", b.ArchiveKey)
	require.NotNil(t, b.CompletedAt)
}

func TestGetBatch_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM import_batches`).WillReturnError(sql.ErrNoRows)
	_, err := NewBatchRepo(db).GetBatch(context.Background(), batchID)
	assert.ErrorIs(t, err, performance.ErrBatchNotFound)
}

func TestListBatches(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM import_batches\s+WHERE campaign_id = \$1\s+ORDER BY created_at DESC, id DESC\s+LIMIT \$2`).
		WithArgs(campaignID, 10).
		WillReturnRows(batchRows().AddRow(batchID, campaignID, "m.csv", 0, 0, 0, []byte(`[]`), "processing", "", now, nil))

	got, err := NewBatchRepo(db).ListBatches(context.Background(), campaignID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].CompletedAt)
	assert.NotNil(t, got[0].Errors)
}

func TestRowWriter_CommitsOneTransaction(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	tiktok := domain.PlatformTikTok

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO performance_rows`).
		WithArgs("r1", batchID, angleA, int64(10), int64(1), int64(0),
			sqlmock.AnyArg(), sqlmock.AnyArg(), "tiktok", nil, nil, nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w, err := NewRowRepo(db).BeginRows(context.Background(), batchID)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), []domain.PerformanceRow{{
		ID: "r1", AngleID: angleA, Impressions: 10, Clicks: 1,
		Spend: decimal.NewFromInt(1), Revenue: decimal.Zero, Platform: &tiktok, CreatedAt: now,
	}}))
	require.NoError(t, w.Commit())
}

func TestRowWriter_LookupOwnersRunsInsideTransaction(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, campaign_id FROM angles WHERE id = ANY\(\$1::uuid\[\]\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id"}).AddRow(angleA, campaignID))
	mock.ExpectExec(`INSERT INTO performance_rows`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w, err := NewRowRepo(db).BeginRows(context.Background(), batchID)
	require.NoError(t, err)
	owners, err := w.LookupOwners(context.Background(), []string{angleA, angleB})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{angleA: campaignID}, owners)
	require.NoError(t, w.Write(context.Background(), []domain.PerformanceRow{{ID: "r1", AngleID: angleA, CreatedAt: now}}))
	require.NoError(t, w.Commit())
}

func TestRowWriter_LookupOwnersEmptySkipsQuery(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	w, err := NewRowRepo(db).BeginRows(context.Background(), batchID)
	require.NoError(t, err)
	owners, err := w.LookupOwners(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, owners)
	require.NoError(t, w.Rollback())
}

func TestRowWriter_RollbackOnFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO performance_rows`).WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	w, err := NewRowRepo(db).BeginRows(context.Background(), batchID)
	require.NoError(t, err)
	err = w.Write(context.Background(), []domain.PerformanceRow{{ID: "r1", AngleID: angleA}})
	assert.ErrorContains(t, err, "fk violation")
	require.NoError(t, w.Rollback())
}

func TestRowWriter_SplitsLargeWrites(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO performance_rows`).WillReturnResult(sqlmock.NewResult(0, maxRowsPerInsert))
	mock.ExpectExec(`INSERT INTO performance_rows`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rows := make([]domain.PerformanceRow, maxRowsPerInsert+1)
	w, err := NewRowRepo(db).BeginRows(context.Background(), batchID)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), rows))
	require.NoError(t, w.Commit())
}

func TestSumByAngle(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`LEAST\(COALESCE\(SUM\(r.impressions\), 0\), 9223372036854775807\)::bigint.*FROM performance_rows r\s+JOIN angles a ON a.id = r.angle_id\s+WHERE a.campaign_id = \$1\s+GROUP BY r.angle_id`).
		WithArgs(campaignID).
		WillReturnRows(sqlmock.NewRows([]string{"angle_id", "count", "impressions", "clicks", "conversions", "spend", "revenue"}).
			AddRow(angleA, 2, "1000", "0", "0", "50.00", "0"))

	sums, err := NewRowRepo(db).SumByAngle(context.Background(), campaignID)
	require.NoError(t, err)
	tot := sums[angleA]
	assert.Equal(t, int64(2), tot.RowCount)
	assert.Equal(t, int64(1000), tot.Impressions)
	assert.True(t, tot.Spend.Equal(decimal.NewFromInt(50)))
	assert.True(t, tot.Revenue.IsZero())
}
