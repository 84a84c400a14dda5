package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/lib/pq"
)

// AngleRepo implements angle storage against PostgreSQL.
type AngleRepo struct{ db *sql.DB }

// NewAngleRepo creates a Postgres-backed angle repository.
func NewAngleRepo(db *sql.DB) *AngleRepo { return &AngleRepo{db: db} }

const angleColumns = `id, campaign_id, headline, body, cta, status, source,
		       is_winner, parent_angle_id, version, created_at, updated_at`

func (r *AngleRepo) ListAngles(ctx context.Context, campaignID string) ([]domain.Angle, error) {
	return r.query(ctx, `
		SELECT `+angleColumns+`
		FROM angles
		WHERE campaign_id = $1
		ORDER BY created_at, id
	`, campaignID)
}

func (r *AngleRepo) ListWinners(ctx context.Context, campaignID string) ([]domain.Angle, error) {
	return r.query(ctx, `
		SELECT `+angleColumns+`
		FROM angles
		WHERE campaign_id = $1 AND is_winner
		ORDER BY created_at, id
	`, campaignID)
}

func (r *AngleRepo) GetAngles(ctx context.Context, campaignID string, ids []string) ([]domain.Angle, error) {
	if len(ids) == 0 {
		return []domain.Angle{}, nil
	}
	return r.query(ctx, `
		SELECT `+angleColumns+`
		FROM angles
		WHERE campaign_id = $1 AND id = ANY($2::uuid[])
		ORDER BY created_at, id
	`, campaignID, pq.Array(ids))
}

func (r *AngleRepo) MarkWinners(ctx context.Context, campaignID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE angles SET is_winner = TRUE, updated_at = NOW()
		WHERE campaign_id = $1 AND id = ANY($2::uuid[]) AND NOT is_winner
	`, campaignID, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark winners: %w", err)
	}
	return nil
}

const angleInsertColumns = 12

func (r *AngleRepo) CreateAngles(ctx context.Context, angles []domain.Angle) error {
	if len(angles) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(angles)*angleInsertColumns)
	for _, a := range angles {
		var parent interface{}
		if a.ParentAngleID != nil {
			parent = *a.ParentAngleID
		}
		args = append(args,
			a.ID, a.CampaignID, a.Headline, a.Body, a.CTA, string(a.Status), string(a.Source),
			a.IsWinner, parent, a.Version, a.CreatedAt, a.UpdatedAt,
		)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO angles
			(id, campaign_id, headline, body, cta, status, source,
			 is_winner, parent_angle_id, version, created_at, updated_at)
		VALUES `+placeholders(len(angles), angleInsertColumns), args...)
	if err != nil {
		return fmt.Errorf("create angles: %w", err)
	}
	return nil
}

func (r *AngleRepo) query(ctx context.Context, q string, args ...interface{}) ([]domain.Angle, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list angles: %w", err)
	}
	defer rows.Close()

	out := []domain.Angle{}
	for rows.Next() {
		var a domain.Angle
		var parent sql.NullString
		if err := rows.Scan(
			&a.ID, &a.CampaignID, &a.Headline, &a.Body, &a.CTA, &a.Status, &a.Source,
			&a.IsWinner, &parent, &a.Version, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan angle: %w", err)
		}
		if parent.Valid {
			p := parent.String
			a.ParentAngleID = &p
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
