// Package provider defines the contract with the external data provider and
// ships the implementations used by the service: an HTTP gateway client, an
// in-memory provider and a caching decorator.
package provider

import (
	"context"

	"github.com/vjranagit/mbseries/pkg/types"
)

// Provider is everything the engine asks of the external data provider.
type Provider interface {
	// FetchOne returns a single series. Provider-side failures are reported
	// through the series' error flag, not the returned error.
	FetchOne(ctx context.Context, id string) (*types.RawSeries, error)

	// FetchMany returns one series per id, in the same order.
	FetchMany(ctx context.Context, ids []string) ([]*types.RawSeries, error)

	// FetchUnified is FetchMany with provider-side transformations applied.
	FetchUnified(ctx context.Context, req *UnifiedRequest) ([]*types.RawSeries, error)

	// FetchWithRevisions opens the release history of a series.
	FetchWithRevisions(ctx context.Context, id string) (History, error)

	// FetchEntity returns any named entity with its metadata.
	FetchEntity(ctx context.Context, id string) (*types.Entity, error)

	// Search runs an entity search.
	Search(ctx context.Context, q *SearchQuery) (*types.SearchResult, error)

	// PresentationText returns the display text of a metadata value.
	PresentationText(ctx context.Context, key, value string) (string, error)
}

// History gives access to the successive releases of one series.
type History interface {
	// HasRevisions reports whether any revision has been recorded.
	HasRevisions() bool

	// ErrorMessage is the provider's message when the history is unusable.
	ErrorMessage() string

	// Release returns release n; 0 is the original publication.
	Release(ctx context.Context, n int) (*types.RawSeries, error)
}
