// Package series is the entry point for callers: it composes the provider,
// the aligner, the revision walker and the metadata describer.
package series

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guregu/null/v6"
	"github.com/vjranagit/mbseries/pkg/align"
	"github.com/vjranagit/mbseries/pkg/metadata"
	"github.com/vjranagit/mbseries/pkg/provider"
	"github.com/vjranagit/mbseries/pkg/revision"
	"github.com/vjranagit/mbseries/pkg/ticker"
	"github.com/vjranagit/mbseries/pkg/types"
)

// Options tunes a Service.
type Options struct {
	MaxRevisions    int
	DefaultCurrency string
	Logger          *slog.Logger
}

// Service answers series, revision, metadata and search requests.
type Service struct {
	provider  provider.Provider
	walker    *revision.Walker
	describer *metadata.Describer
	currency  string
	logger    *slog.Logger
}

// NewService creates a service over p.
func NewService(p provider.Provider, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	currency := opts.DefaultCurrency
	if currency == "" {
		currency = provider.DefaultCurrency
	}

	return &Service{
		provider:  p,
		walker:    revision.NewWalker(p, opts.MaxRevisions, logger),
		describer: metadata.NewDescriber(p, logger),
		currency:  currency,
		logger:    logger,
	}
}

// Aligned fetches ids and aligns them on the union of their dates.
func (s *Service) Aligned(ctx context.Context, ids []string) (*align.Result, error) {
	res, err := align.Fetch(ctx, s.provider, ids)
	if err != nil {
		return nil, err
	}
	s.logFailures("aligned", res.Failures)
	return res, nil
}

// Unified fetches ids converted to currency by the provider and aligns them.
// An empty currency selects the service default.
func (s *Service) Unified(ctx context.Context, ids []string, currency string) (*align.Result, error) {
	if currency == "" {
		currency = s.currency
	}
	req := &provider.UnifiedRequest{IDs: ids, Currency: currency}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	raws, err := s.provider.FetchUnified(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unified series: %w", err)
	}

	res, err := align.FromRaw(ids, raws)
	if err != nil {
		return nil, err
	}
	s.logFailures("unified", res.Failures)
	return res, nil
}

// Revisions returns the original release and first revision of id.
func (s *Service) Revisions(ctx context.Context, id string) (*types.RevisionTable, error) {
	return s.walker.Walk(ctx, id)
}

// Describe returns descriptive rows for ids.
func (s *Service) Describe(ctx context.Context, ids []string) *metadata.Result {
	return s.describer.Describe(ctx, ids)
}

// Status summarizes the lifecycle of a series.
type Status struct {
	ID              string      `json:"id"`
	Discontinued    null.Bool   `json:"discontinued"`
	Replacement     null.String `json:"replacement"`
	NextRelease     time.Time   `json:"next_release"`
	PreviousRelease time.Time   `json:"previous_release"`
}

// Status reports whether id is discontinued, what replaces it and when it
// was last and will next be released.
func (s *Service) Status(ctx context.Context, id string) (*Status, error) {
	st := &Status{ID: id}

	var err error
	if st.Discontinued, err = s.describer.Discontinued(ctx, id); err != nil {
		return nil, err
	}

	replacement, err := s.describer.Replacement(ctx, id)
	if err != nil {
		return nil, err
	}
	st.Replacement = null.NewString(replacement, replacement != "")

	if st.NextRelease, err = s.describer.ReleaseTime(ctx, id, metadata.NextRelease); err != nil {
		return nil, err
	}
	if st.PreviousRelease, err = s.describer.ReleaseTime(ctx, id, metadata.PreviousRelease); err != nil {
		return nil, err
	}
	return st, nil
}

// Field returns one metadata value of id.
func (s *Service) Field(ctx context.Context, id, key string) (null.String, error) {
	return s.describer.Field(ctx, id, key)
}

// Search runs q and returns the names of the matching entities. Unset options
// take their defaults.
func (s *Service) Search(ctx context.Context, q *provider.SearchQuery) ([]string, error) {
	if q == nil {
		q = provider.NewSearchQuery()
	}
	if err := q.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid search query: %w", err)
	}

	res, err := s.provider.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if res.Truncated {
		s.logger.Warn("search results truncated", "returned", len(res.Entities))
	}

	names := make([]string, len(res.Entities))
	for i, e := range res.Entities {
		names[i] = e.Name
	}
	return names, nil
}

// BloombergTickers converts Bloomberg tickers to provider identifiers.
func (s *Service) BloombergTickers(tickers, fields []string) ([]string, error) {
	return ticker.Bloomberg(tickers, fields)
}

func (s *Service) logFailures(op string, failures []error) {
	for _, err := range failures {
		s.logger.Warn("series skipped", "op", op, "error", err)
	}
}
