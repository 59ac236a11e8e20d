package service

import (
	"context"
	"time"

	"github.com/timmy/sportsync/internal/config"
	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/repository"
)

// AvailabilityService answers what data is synced and how fresh it is.
// It keeps no state between calls.
type AvailabilityService struct {
	entities *repository.EntityRepository
	batches  *repository.BatchRepository
	cfg      config.AvailabilityConfig
	now      func() time.Time
}

// NewAvailabilityService creates a new AvailabilityService.
func NewAvailabilityService(entities *repository.EntityRepository, batches *repository.BatchRepository, cfg config.AvailabilityConfig) *AvailabilityService {
	return &AvailabilityService{
		entities: entities,
		batches:  batches,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetAvailability computes a snapshot for scope (empty means every entity type).
// With opts.SkipFixtureCheck the fast variant is returned: per-type counts and
// sync times only. Otherwise fixture-level detail is added; the per-type part is
// computed identically, so the enriched variant never reports less.
func (s *AvailabilityService) GetAvailability(ctx context.Context, scope []domain.EntityType, opts domain.AvailabilityOptions) (*domain.AvailabilitySnapshot, error) {
	types, err := resolveScope(scope)
	if err != nil {
		return nil, err
	}

	now := s.now()
	window := repository.FixtureWindow{Now: now, StaleAfter: s.cfg.StaleAfter}
	if !opts.IncludeHistorical && s.cfg.HistoricalWindow > 0 {
		since := now.Add(-s.cfg.HistoricalWindow)
		window.Since = &since
	}

	counts, err := s.entities.CountByType(ctx, types)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	latest, err := s.batches.LatestClosed(ctx, names)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.AvailabilitySnapshot{
		Entities:          make([]domain.EntityAvailability, 0, len(types)),
		Enriched:          !opts.SkipFixtureCheck,
		IncludeHistorical: opts.IncludeHistorical,
		GeneratedAt:       now,
	}

	fixturesInScope := false
	for _, t := range types {
		c := counts[t]
		entry := domain.EntityAvailability{
			EntityType:   t,
			LocalRows:    c.Rows,
			LastSyncedAt: c.LastSyncedAt,
		}
		if t == domain.EntityFixtures {
			fixturesInScope = true
			if window.Since != nil {
				if entry.LocalRows, err = s.entities.CountFixtures(ctx, window); err != nil {
					return nil, err
				}
			}
		}
		if b, ok := latest[string(t)]; ok {
			id := b.ID
			entry.ProviderRows = int64(b.TotalCount)
			entry.LastBatchID = &id
		}
		snapshot.Entities = append(snapshot.Entities, entry)
	}

	if snapshot.Enriched && fixturesInScope {
		if snapshot.Fixtures, err = s.entities.FixtureStats(ctx, window); err != nil {
			return nil, err
		}
	}
	return snapshot, nil
}

func resolveScope(scope []domain.EntityType) ([]domain.EntityType, error) {
	if len(scope) == 0 {
		return domain.AllEntityTypes, nil
	}
	seen := make(map[domain.EntityType]bool, len(scope))
	types := make([]domain.EntityType, 0, len(scope))
	for _, raw := range scope {
		t, err := domain.ParseEntityType(string(raw))
		if err != nil {
			return nil, err
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	return types, nil
}
