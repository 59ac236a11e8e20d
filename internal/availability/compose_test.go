package availability

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsync/internal/domain"
)

// stubSource answers each variant; the fast one waits on fastGate when set.
type stubSource struct {
	fastGate    chan struct{}
	fastErr     error
	enrichedErr error
}

func (s *stubSource) GetAvailability(_ context.Context, _ []domain.EntityType, opts domain.AvailabilityOptions) (*domain.AvailabilitySnapshot, error) {
	if opts.SkipFixtureCheck {
		if s.fastGate != nil {
			<-s.fastGate
		}
		if s.fastErr != nil {
			return nil, s.fastErr
		}
		return &domain.AvailabilitySnapshot{Enriched: false}, nil
	}
	if s.enrichedErr != nil {
		return nil, s.enrichedErr
	}
	return &domain.AvailabilitySnapshot{Enriched: true, Fixtures: &domain.FixtureAvailability{Total: 1}}, nil
}

func TestMergerNeverDowngrades(t *testing.T) {
	var seen []bool
	m := NewMerger(func(s *domain.AvailabilitySnapshot) { seen = append(seen, s.Enriched) })

	assert.True(t, m.Offer(&domain.AvailabilitySnapshot{Enriched: false}))
	assert.True(t, m.Offer(&domain.AvailabilitySnapshot{Enriched: true}))
	assert.False(t, m.Offer(&domain.AvailabilitySnapshot{Enriched: false}))
	assert.False(t, m.Offer(nil))

	assert.True(t, m.Current().Enriched)
	assert.Equal(t, []bool{false, true}, seen)
}

func TestComposeFastArrivingLateIsDropped(t *testing.T) {
	src := &stubSource{fastGate: make(chan struct{})}

	var (
		mu      sync.Mutex
		emitted []*domain.AvailabilitySnapshot
	)
	emit := func(s *domain.AvailabilitySnapshot) {
		mu.Lock()
		emitted = append(emitted, s)
		enriched := s.Enriched
		mu.Unlock()
		if enriched {
			close(src.fastGate)
		}
	}

	final, err := Compose(context.Background(), src, nil, false, emit)
	require.NoError(t, err)
	assert.True(t, final.Enriched)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, emitted, 1)
	assert.True(t, emitted[0].Enriched)
}

func TestComposeKeepsFastWhenEnrichedFails(t *testing.T) {
	src := &stubSource{enrichedErr: errors.New("fixture scan timed out")}

	final, err := Compose(context.Background(), src, nil, false, nil)
	require.NoError(t, err)
	assert.False(t, final.Enriched)
}

func TestComposeBothFail(t *testing.T) {
	boom := errors.New("database closed")
	src := &stubSource{fastErr: boom, enrichedErr: boom}

	final, err := Compose(context.Background(), src, nil, false, nil)
	assert.Nil(t, final)
	assert.ErrorIs(t, err, boom)
}
