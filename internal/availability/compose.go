// Package availability composes the fast and enriched availability reads on
// the caller side.
package availability

import (
	"context"
	"sync"

	"github.com/timmy/sportsync/internal/domain"
)

// Source computes one availability variant.
type Source interface {
	GetAvailability(ctx context.Context, scope []domain.EntityType, opts domain.AvailabilityOptions) (*domain.AvailabilitySnapshot, error)
}

// Merger holds the best snapshot seen so far. An enriched snapshot is never
// replaced by a fast one.
type Merger struct {
	mu       sync.Mutex
	current  *domain.AvailabilitySnapshot
	onChange func(*domain.AvailabilitySnapshot)
}

// NewMerger creates a Merger. onChange, if set, is called under the merger's
// lock each time the held snapshot changes, so renders happen in merge order.
func NewMerger(onChange func(*domain.AvailabilitySnapshot)) *Merger {
	return &Merger{onChange: onChange}
}

// Offer proposes a snapshot and reports whether it was taken.
func (m *Merger) Offer(s *domain.AvailabilitySnapshot) bool {
	if s == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.Enriched && !s.Enriched {
		return false
	}
	m.current = s
	if m.onChange != nil {
		m.onChange(s)
	}
	return true
}

// Current returns the held snapshot, or nil.
func (m *Merger) Current() *domain.AvailabilitySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Compose requests both variants concurrently, emits the fast one as soon as
// it arrives, and replaces it with the enriched one. It returns the final
// snapshot; the error is returned only when neither variant succeeded.
func Compose(ctx context.Context, src Source, scope []domain.EntityType, includeHistorical bool, emit func(*domain.AvailabilitySnapshot)) (*domain.AvailabilitySnapshot, error) {
	merger := NewMerger(emit)

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	fetch := func(skipFixtureCheck bool) {
		defer wg.Done()
		snap, err := src.GetAvailability(ctx, scope, domain.AvailabilityOptions{
			IncludeHistorical: includeHistorical,
			SkipFixtureCheck:  skipFixtureCheck,
		})
		if err != nil {
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
			return
		}
		merger.Offer(snap)
	}

	wg.Add(2)
	go fetch(true)
	go fetch(false)
	wg.Wait()

	if final := merger.Current(); final != nil {
		return final, nil
	}
	return nil, firstErr
}
