// Package memory provides in-process repositories for tests and stub mode.
// Data lives only as long as the Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/service/optimization"
	"github.com/ignite/copyloop/internal/service/performance"
)

var (
	_ performance.CampaignRepository  = (*Store)(nil)
	_ performance.AngleRepository     = (*Store)(nil)
	_ performance.BatchRepository     = (*Store)(nil)
	_ performance.RowRepository       = (*Store)(nil)
	_ optimization.CampaignRepository = (*Store)(nil)
	_ optimization.AngleRepository    = (*Store)(nil)
)

// Store implements the performance and optimization repositories.
// It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	campaigns map[string]domain.Campaign
	angles    map[string]domain.Angle
	order     []string // angle ids in insertion order
	batches   map[string]domain.ImportBatch
	batchSeq  []string
	rows      []domain.PerformanceRow
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		campaigns: make(map[string]domain.Campaign),
		angles:    make(map[string]domain.Angle),
		batches:   make(map[string]domain.ImportBatch),
	}
}

// PutCampaign inserts or replaces a campaign.
func (s *Store) PutCampaign(c domain.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = c
}

// PutAngle inserts or replaces an angle.
func (s *Store) PutAngle(a domain.Angle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putAngle(a)
}

func (s *Store) putAngle(a domain.Angle) {
	if _, ok := s.angles[a.ID]; !ok {
		s.order = append(s.order, a.ID)
	}
	s.angles[a.ID] = a
}

// Rows returns a copy of every committed row.
func (s *Store) Rows() []domain.PerformanceRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.PerformanceRow(nil), s.rows...)
}

// Angle returns one angle by id.
func (s *Store) Angle(id string) (domain.Angle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.angles[id]
	return a, ok
}

// ---- campaigns ----

func (s *Store) GetCampaign(_ context.Context, id string) (*domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, performance.ErrCampaignNotFound
	}
	return &c, nil
}

// ---- angles ----

func (s *Store) LookupOwners(_ context.Context, ids []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if a, ok := s.angles[id]; ok {
			out[id] = a.CampaignID
		}
	}
	return out, nil
}

func (s *Store) ListAngles(_ context.Context, campaignID string) ([]domain.Angle, error) {
	return s.filterAngles(func(a domain.Angle) bool { return a.CampaignID == campaignID }), nil
}

func (s *Store) ListWinners(_ context.Context, campaignID string) ([]domain.Angle, error) {
	return s.filterAngles(func(a domain.Angle) bool { return a.CampaignID == campaignID && a.IsWinner }), nil
}

func (s *Store) GetAngles(_ context.Context, campaignID string, ids []string) ([]domain.Angle, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return s.filterAngles(func(a domain.Angle) bool { return a.CampaignID == campaignID && want[a.ID] }), nil
}

// filterAngles returns matches ordered by created_at, then insertion order.
func (s *Store) filterAngles(keep func(domain.Angle) bool) []domain.Angle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Angle{}
	for _, id := range s.order {
		if a := s.angles[id]; keep(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) MarkWinners(_ context.Context, campaignID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		a, ok := s.angles[id]
		if !ok || a.CampaignID != campaignID {
			continue
		}
		a.IsWinner = true
		s.angles[id] = a
	}
	return nil
}

func (s *Store) CreateAngles(_ context.Context, angles []domain.Angle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range angles {
		if _, ok := s.angles[a.ID]; ok {
			return fmt.Errorf("angle %s already exists", a.ID)
		}
	}
	for _, a := range angles {
		s.putAngle(a)
	}
	return nil
}
