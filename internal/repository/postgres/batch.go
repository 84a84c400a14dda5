package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/service/performance"
)

// BatchRepo implements the import ledger against PostgreSQL. Row errors are
// stored as a JSONB array of {row, code, message}.
type BatchRepo struct{ db *sql.DB }

// NewBatchRepo creates a Postgres-backed batch repository.
func NewBatchRepo(db *sql.DB) *BatchRepo { return &BatchRepo{db: db} }

const batchColumns = `id, campaign_id, filename, rows_total, rows_processed, rows_failed,
		       errors, status, COALESCE(archive_key,''), created_at, completed_at`

func (r *BatchRepo) CreateBatch(ctx context.Context, b *domain.ImportBatch) error {
	errs, err := marshalErrors(b.Errors)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO import_batches
			(id, campaign_id, filename, rows_total, rows_processed, rows_failed, errors, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.ID, b.CampaignID, b.Filename, b.RowsTotal, b.RowsProcessed, b.RowsFailed,
		errs, string(b.Status), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// CompleteBatch only touches batches still processing, so a batch is closed
// at most once even with concurrent writers.
func (r *BatchRepo) CompleteBatch(ctx context.Context, id string, out domain.BatchOutcome) error {
	errs, err := marshalErrors(out.Errors)
	if err != nil {
		return err
	}
	var archive interface{}
	if out.ArchiveKey != "" {
		archive = out.ArchiveKey
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE import_batches
		SET status = $2, rows_total = $3, rows_processed = $4, rows_failed = $5,
		    errors = $6, archive_key = $7, completed_at = $8
		WHERE id = $1 AND status = 'processing'
	`, id, string(out.Status), out.RowsTotal, out.RowsProcessed, out.RowsFailed,
		errs, archive, out.CompletedAt)
	if err != nil {
		return fmt.Errorf("complete batch: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM import_batches WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check batch: %w", err)
	}
	if !exists {
		return performance.ErrBatchNotFound
	}
	return performance.ErrBatchClosed
}

func (r *BatchRepo) GetBatch(ctx context.Context, id string) (*domain.ImportBatch, error) {
	b, err := scanBatch(r.db.QueryRowContext(ctx, `
		SELECT `+batchColumns+`
		FROM import_batches
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, performance.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

func (r *BatchRepo) ListBatches(ctx context.Context, campaignID string, limit int) ([]domain.ImportBatch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+batchColumns+`
		FROM import_batches
		WHERE campaign_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	out := []domain.ImportBatch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBatch(s scanner) (*domain.ImportBatch, error) {
	var b domain.ImportBatch
	var errs []byte
	var completed sql.NullTime
	if err := s.Scan(
		&b.ID, &b.CampaignID, &b.Filename, &b.RowsTotal, &b.RowsProcessed, &b.RowsFailed,
		&errs, &b.Status, &b.ArchiveKey, &b.CreatedAt, &completed,
	); err != nil {
		return nil, err
	}
	b.Errors = []domain.RowError{}
	if len(errs) > 0 {
		if err := json.Unmarshal(errs, &b.Errors); err != nil {
			return nil, fmt.Errorf("decode batch errors: %w", err)
		}
	}
	if completed.Valid {
		t := completed.Time
		b.CompletedAt = &t
	}
	return &b, nil
}

func marshalErrors(errs []domain.RowError) ([]byte, error) {
	if errs == nil {
		errs = []domain.RowError{}
	}
	data, err := json.Marshal(errs)
	if err != nil {
		return nil, fmt.Errorf("encode batch errors: %w", err)
	}
	return data, nil
}
