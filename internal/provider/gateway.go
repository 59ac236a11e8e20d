package provider

import (
	"context"

	"github.com/timmy/sportsync/internal/domain"
)

// Params are provider query parameters, e.g. league and season.
type Params map[string]string

// Gateway defines the interface for sports data providers.
// Implementations return records already normalized to domain field names and
// never retry; retry policy belongs to the caller.
type Gateway interface {
	// Name returns a stable identifier for this provider.
	Name() string

	// Fetch returns every record of one entity type.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - entityType: kind of record to fetch.
	//   - params: provider query parameters; may be nil.
	// Returns:
	//   - []domain.ProviderRecord: normalized records.
	//   - error: marked with domain.ErrProviderUnavailable, domain.ErrProviderAuth,
	//     or domain.ErrUnknownEntityType where applicable.
	Fetch(ctx context.Context, entityType domain.EntityType, params Params) ([]domain.ProviderRecord, error)

	// EntityTypes lists the entity types this provider can serve.
	EntityTypes() []domain.EntityType
}

// FromJobParams converts stored job parameters to provider parameters.
func FromJobParams(p domain.JobParams) Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
