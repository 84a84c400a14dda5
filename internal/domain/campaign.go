package domain

import (
	"time"
)

// Campaign is the project that owns a set of angles. It is managed outside
// this service; the loop only reads it for product context.
type Campaign struct {
	ID                 string    `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	ProductDescription string    `json:"product_description" db:"product_description"`
	TargetAudience     string    `json:"target_audience" db:"target_audience"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// AngleStatus enumerates the review states of an angle.
type AngleStatus string

const (
	AngleStatusDraft    AngleStatus = "draft"
	AngleStatusApproved AngleStatus = "approved"
	AngleStatusArchived AngleStatus = "archived"
)

// AngleSource records how an angle came to exist.
type AngleSource string

const (
	SourceGenerated AngleSource = "generated"
	SourceIteration AngleSource = "iteration"
)

// InitialAngleVersion is the version every new angle starts at.
const InitialAngleVersion = 1

// Angle is one content variant of ad copy being measured and iterated on.
type Angle struct {
	ID            string      `json:"id" db:"id"`
	CampaignID    string      `json:"campaign_id" db:"campaign_id"`
	Headline      string      `json:"headline" db:"headline"`
	Body          string      `json:"body" db:"body"`
	CTA           string      `json:"cta" db:"cta"`
	Status        AngleStatus `json:"status" db:"status"`
	Source        AngleSource `json:"source" db:"source"`
	IsWinner      bool        `json:"is_winner" db:"is_winner"`
	ParentAngleID *string     `json:"parent_angle_id,omitempty" db:"parent_angle_id"`
	Version       int         `json:"version" db:"version"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// Content returns the generative fields of the angle.
func (a *Angle) Content() AngleDraft {
	return AngleDraft{Headline: a.Headline, Body: a.Body, CTA: a.CTA}
}

// AngleDraft is freshly generated copy that has not been persisted yet.
type AngleDraft struct {
	Headline string `json:"headline"`
	Body     string `json:"body"`
	CTA      string `json:"cta"`
}

// Brief returns the product context used when generating copy.
func (c *Campaign) Brief() ProductBrief {
	return ProductBrief{Name: c.Name, Description: c.ProductDescription, TargetAudience: c.TargetAudience}
}
