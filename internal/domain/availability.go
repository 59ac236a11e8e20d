package domain

import "time"

// AvailabilityOptions selects the variant of an availability read.
type AvailabilityOptions struct {
	IncludeHistorical bool
	SkipFixtureCheck  bool
}

// EntityAvailability describes how much of one entity type is synced.
type EntityAvailability struct {
	EntityType   EntityType `json:"entity_type"`
	LocalRows    int64      `json:"local_rows"`
	ProviderRows int64      `json:"provider_rows"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	LastBatchID  *uint      `json:"last_batch_id,omitempty"`
}

// FixtureAvailability is the expensive fixture-level detail of the enriched variant.
type FixtureAvailability struct {
	Total          int64      `json:"total"`
	Upcoming       int64      `json:"upcoming"`
	Past           int64      `json:"past"`
	Stale          int64      `json:"stale"`
	LeaguesCovered int64      `json:"leagues_covered"`
	OldestSyncedAt *time.Time `json:"oldest_synced_at,omitempty"`
}

// AvailabilitySnapshot is a derived read, recomputed per request.
// The enriched variant reports every field of the fast one plus Fixtures.
type AvailabilitySnapshot struct {
	Entities          []EntityAvailability `json:"entities"`
	Fixtures          *FixtureAvailability `json:"fixtures,omitempty"`
	Enriched          bool                 `json:"enriched"`
	IncludeHistorical bool                 `json:"include_historical"`
	GeneratedAt       time.Time            `json:"generated_at"`
}
