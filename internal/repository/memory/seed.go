package memory

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/copyloop/internal/domain"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML layout accepted by LoadSeed:
//
//	campaigns:
//	  - id: 7f1d6a52-...
//	    name: Trail shoes
//	    product_description: Lightweight trail runner
//	    target_audience: weekend hikers
//	    angles:
//	      - id: 11111111-...
//	        headline: Run lighter
//	        body: ...
//	        cta: Shop now
type Seed struct {
	Campaigns []SeedCampaign `yaml:"campaigns"`
}

// SeedCampaign is one campaign with its starting angles.
type SeedCampaign struct {
	ID                 string      `yaml:"id"`
	Name               string      `yaml:"name"`
	ProductDescription string      `yaml:"product_description"`
	TargetAudience     string      `yaml:"target_audience"`
	Angles             []SeedAngle `yaml:"angles"`
}

// SeedAngle is one starting angle. Status defaults to approved.
type SeedAngle struct {
	ID       string             `yaml:"id"`
	Headline string             `yaml:"headline"`
	Body     string             `yaml:"body"`
	CTA      string             `yaml:"cta"`
	Status   domain.AngleStatus `yaml:"status"`
}

// LoadSeedFile reads a seed file into the store.
func (s *Store) LoadSeedFile(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	return s.LoadSeed(f)
}

// LoadSeed decodes YAML seed data into the store and returns how many
// campaigns and angles were loaded. Ids must be UUIDs. Nothing is stored if
// any entry is invalid.
func (s *Store) LoadSeed(r io.Reader) (int, int, error) {
	var seed Seed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil && err != io.EOF {
		return 0, 0, fmt.Errorf("decode seed: %w", err)
	}

	now := time.Now().UTC()
	var campaigns []domain.Campaign
	var angles []domain.Angle
	for i, c := range seed.Campaigns {
		if _, err := uuid.Parse(c.ID); err != nil {
			return 0, 0, fmt.Errorf("campaign %d: id %q is not a UUID", i, c.ID)
		}
		campaigns = append(campaigns, domain.Campaign{
			ID: c.ID, Name: c.Name, ProductDescription: c.ProductDescription,
			TargetAudience: c.TargetAudience, CreatedAt: now,
		})
		for j, a := range c.Angles {
			if _, err := uuid.Parse(a.ID); err != nil {
				return 0, 0, fmt.Errorf("campaign %s angle %d: id %q is not a UUID", c.ID, j, a.ID)
			}
			status := a.Status
			if status == "" {
				status = domain.AngleStatusApproved
			}
			angles = append(angles, domain.Angle{
				ID: a.ID, CampaignID: c.ID,
				Headline: a.Headline, Body: a.Body, CTA: a.CTA,
				Status: status, Source: domain.SourceGenerated,
				Version: domain.InitialAngleVersion,
				// Distinct timestamps keep seed order stable in listings.
				CreatedAt: now.Add(time.Duration(len(angles)) * time.Millisecond),
				UpdatedAt: now,
			})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range campaigns {
		s.campaigns[c.ID] = c
	}
	for _, a := range angles {
		s.putAngle(a)
	}
	return len(campaigns), len(angles), nil
}
