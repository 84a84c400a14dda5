package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/service/performance"
	"github.com/lib/pq"
)

// rowInsertColumns is the width of one performance_rows insert tuple.
const rowInsertColumns = 13

// maxRowsPerInsert keeps a statement well below the 65535 parameter limit.
const maxRowsPerInsert = 1000

// RowRepo stores performance rows against PostgreSQL.
type RowRepo struct{ db *sql.DB }

// NewRowRepo creates a Postgres-backed performance row repository.
func NewRowRepo(db *sql.DB) *RowRepo { return &RowRepo{db: db} }

// BeginRows opens the transaction every row of one import is written in.
func (r *RowRepo) BeginRows(ctx context.Context, batchID string) (performance.RowWriter, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rows tx: %w", err)
	}
	return &rowTx{tx: tx, batchID: batchID}, nil
}

// SumByAngle sums rows in the database; ratios are derived by the caller.
// SUM over bigint is NUMERIC, so counters are clamped to the int64 range.
func (r *RowRepo) SumByAngle(ctx context.Context, campaignID string) (map[string]domain.Totals, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.angle_id, COUNT(*),
		       LEAST(COALESCE(SUM(r.impressions), 0), 9223372036854775807)::bigint,
		       LEAST(COALESCE(SUM(r.clicks), 0), 9223372036854775807)::bigint,
		       LEAST(COALESCE(SUM(r.conversions), 0), 9223372036854775807)::bigint,
		       COALESCE(SUM(r.spend), 0), COALESCE(SUM(r.revenue), 0)
		FROM performance_rows r
		JOIN angles a ON a.id = r.angle_id
		WHERE a.campaign_id = $1
		GROUP BY r.angle_id
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("sum rows: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Totals)
	for rows.Next() {
		var id string
		var t domain.Totals
		if err := rows.Scan(&id, &t.RowCount, &t.Impressions, &t.Clicks, &t.Conversions, &t.Spend, &t.Revenue); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		out[id] = t
	}
	return out, rows.Err()
}

type rowTx struct {
	tx      *sql.Tx
	batchID string
}

// LookupOwners resolves angle owners on the import transaction's connection.
func (w *rowTx) LookupOwners(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := w.tx.QueryContext(ctx,
		`SELECT id, campaign_id FROM angles WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lookup angles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, campaignID string
		if err := rows.Scan(&id, &campaignID); err != nil {
			return nil, fmt.Errorf("scan angle owner: %w", err)
		}
		out[id] = campaignID
	}
	return out, rows.Err()
}

func (w *rowTx) Write(ctx context.Context, rows []domain.PerformanceRow) error {
	for start := 0; start < len(rows); start += maxRowsPerInsert {
		end := start + maxRowsPerInsert
		if end > len(rows) {
			end = len(rows)
		}
		if err := w.insert(ctx, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w *rowTx) insert(ctx context.Context, rows []domain.PerformanceRow) error {
	args := make([]interface{}, 0, len(rows)*rowInsertColumns)
	for _, r := range rows {
		var platform, locale, start, end interface{}
		if r.Platform != nil {
			platform = string(*r.Platform)
		}
		if r.Locale != nil {
			locale = *r.Locale
		}
		if r.DateStart != nil {
			start = *r.DateStart
		}
		if r.DateEnd != nil {
			end = *r.DateEnd
		}
		args = append(args,
			r.ID, w.batchID, r.AngleID, r.Impressions, r.Clicks, r.Conversions,
			r.Spend, r.Revenue, platform, locale, start, end, r.CreatedAt,
		)
	}
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO performance_rows
			(id, batch_id, angle_id, impressions, clicks, conversions,
			 spend, revenue, platform, locale, date_start, date_end, created_at)
		VALUES `+placeholders(len(rows), rowInsertColumns), args...)
	if err != nil {
		return fmt.Errorf("insert performance rows: %w", err)
	}
	return nil
}

func (w *rowTx) Commit() error { return w.tx.Commit() }

func (w *rowTx) Rollback() error { return w.tx.Rollback() }
