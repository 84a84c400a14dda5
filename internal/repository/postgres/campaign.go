package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/service/optimization"
	"github.com/ignite/copyloop/internal/service/performance"
)

var (
	_ performance.CampaignRepository  = (*CampaignRepo)(nil)
	_ performance.AngleRepository     = (*AngleRepo)(nil)
	_ performance.BatchRepository     = (*BatchRepo)(nil)
	_ performance.RowRepository       = (*RowRepo)(nil)
	_ optimization.CampaignRepository = (*CampaignRepo)(nil)
	_ optimization.AngleRepository    = (*AngleRepo)(nil)
)

// CampaignRepo implements the campaign lookups of the performance and
// optimization services against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, performance.ErrCampaignNotFound
	}
	c := &domain.Campaign{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(product_description,''), COALESCE(target_audience,''), created_at
		FROM campaigns
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.ProductDescription, &c.TargetAudience, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, performance.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// placeholders returns "($1, $2, ...), ($n+1, ...)" for rows of width cols.
func placeholders(rows, cols int) string {
	buf := make([]byte, 0, rows*cols*5)
	n := 1
	for i := 0; i < rows; i++ {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		buf = append(buf, '(')
		for j := 0; j < cols; j++ {
			if j > 0 {
				buf = append(buf, ", "...)
			}
			buf = append(buf, fmt.Sprintf("$%d", n)...)
			n++
		}
		buf = append(buf, ')')
	}
	return string(buf)
}
