// Package metadata assembles descriptive rows for series from the provider's
// entity and metadata lookups.
package metadata

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guregu/null/v6"
	"github.com/vjranagit/mbseries/pkg/types"
)

// Metadata keys read from provider entities.
const (
	KeyRegion                  = "Region"
	KeyCurrency                = "Currency"
	KeyDatabase                = "Database"
	KeyFrequency               = "Frequency"
	KeyRelease                 = "Release"
	KeyConcept                 = "RegionKey"
	KeySeasonAdjusted          = "SeasonAdj"
	KeyEntityType              = "EntityType"
	KeyEntityState             = "EntityState"
	KeyDiscontinuedComment     = "EntityDiscontinuedComment"
	KeyDiscontinuedReplacement = "EntityDiscontinuedReplacements"
	KeyNextReleaseEvent        = "NextReleaseEventTime"
	KeyLastReleaseEvent        = "LastReleaseEventTime"
)

// Entity states reported under KeyEntityState.
const (
	StateActive       = 0
	StateDiscontinued = 4
)

// Source is the slice of the provider the describer needs.
type Source interface {
	FetchEntity(ctx context.Context, id string) (*types.Entity, error)
	PresentationText(ctx context.Context, key, value string) (string, error)
}

// Describer builds descriptive rows one identifier at a time.
type Describer struct {
	src    Source
	logger *slog.Logger
}

// NewDescriber creates a describer. A nil logger uses slog.Default().
func NewDescriber(src Source, logger *slog.Logger) *Describer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Describer{src: src, logger: logger}
}

// Result holds the rows that could be described and the identifiers that
// could not, in request order.
type Result struct {
	Rows     []types.DescriptiveRow
	Failures []error
}

// Describe returns one row per identifier. A failing identifier is skipped and
// reported in Failures; the rest of the batch is unaffected.
func (d *Describer) Describe(ctx context.Context, ids []string) *Result {
	res := &Result{Rows: make([]types.DescriptiveRow, 0, len(ids))}
	for _, id := range ids {
		row, err := d.describeOne(ctx, id)
		if err != nil {
			d.logger.Warn("describe failed", "id", id, "error", err)
			res.Failures = append(res.Failures, err)
			continue
		}
		res.Rows = append(res.Rows, *row)
	}
	return res
}

func (d *Describer) describeOne(ctx context.Context, id string) (*types.DescriptiveRow, error) {
	e, err := d.entity(ctx, id)
	if err != nil {
		return nil, err
	}

	row := &types.DescriptiveRow{
		ID:          id,
		Title:       null.NewString(e.Title, e.Title != ""),
		Frequency:   first(e.Metadata, KeyFrequency),
		RegionShort: first(e.Metadata, KeyRegion),
		Currency:    first(e.Metadata, KeyCurrency),
		Source:      first(e.Metadata, KeyDatabase),
		Release:     first(e.Metadata, KeyRelease),
	}
	if row.RegionShort.Valid {
		if name, ok := RegionName(row.RegionShort.String); ok {
			row.RegionLong = null.StringFrom(name)
		}
	}

	row.ConceptShort, row.ConceptLong, err = d.concept(ctx, id, e)
	if err != nil {
		return nil, err
	}

	next, err := d.releaseTime(ctx, id, e, NextRelease)
	if err != nil {
		return nil, err
	}
	prev, err := d.releaseTime(ctx, id, e, PreviousRelease)
	if err != nil {
		return nil, err
	}
	row.NextRelease = types.DateOf(next)
	row.PreviousRelease = types.DateOf(prev)

	return row, nil
}

// Concept returns the short and long form of the concept a series belongs
// to. Both are empty when the series carries no concept.
func (d *Describer) Concept(ctx context.Context, id string) (string, string, error) {
	e, err := d.entity(ctx, id)
	if err != nil {
		return "", "", err
	}
	return d.concept(ctx, id, e)
}

func (d *Describer) concept(ctx context.Context, id string, e *types.Entity) (string, string, error) {
	short, ok := e.Metadata.FirstValue(KeyConcept)
	if !ok {
		return "", "", nil
	}
	long, err := d.src.PresentationText(ctx, KeyConcept, short)
	if err != nil {
		return "", "", &types.SeriesError{ID: id, Err: fmt.Errorf("failed to resolve concept %s: %w", short, err)}
	}
	return short, long, nil
}

// Field returns an arbitrary metadata value of a series. Unknown keys resolve
// to an absent value.
func (d *Describer) Field(ctx context.Context, id, key string) (null.String, error) {
	e, err := d.entity(ctx, id)
	if err != nil {
		return null.String{}, err
	}
	return first(e.Metadata, key), nil
}

// Discontinued reports whether a series is discontinued. The value is absent
// when the provider reports a state other than active or discontinued.
func (d *Describer) Discontinued(ctx context.Context, id string) (null.Bool, error) {
	e, err := d.entity(ctx, id)
	if err != nil {
		return null.Bool{}, err
	}

	state, ok := e.Metadata.FirstInt(KeyEntityState)
	switch {
	case !ok:
		return null.Bool{}, nil
	case state == StateActive:
		return null.BoolFrom(false), nil
	case state == StateDiscontinued:
		return null.BoolFrom(true), nil
	default:
		return null.Bool{}, nil
	}
}

// Replacement returns the identifier replacing a discontinued series, or ""
// when there is none.
func (d *Describer) Replacement(ctx context.Context, id string) (string, error) {
	e, err := d.entity(ctx, id)
	if err != nil {
		return "", err
	}

	replacements := e.Metadata.Values(KeyDiscontinuedReplacement)
	switch len(replacements) {
	case 0:
		return "", nil
	case 1:
		if comment, ok := e.Metadata.FirstValue(KeyDiscontinuedComment); ok {
			d.logger.Info("series replaced", "id", id, "replacement", replacements[0], "comment", comment)
		}
		return replacements[0], nil
	default:
		return "", &types.SeriesError{ID: id, Err: fmt.Errorf("ambiguous replacement: %d candidates", len(replacements))}
	}
}

func (d *Describer) entity(ctx context.Context, id string) (*types.Entity, error) {
	e, err := d.src.FetchEntity(ctx, id)
	if err != nil {
		return nil, &types.SeriesError{ID: id, Err: err}
	}
	if e.IsError {
		return nil, &types.ProviderError{ID: id, Message: e.ErrorMessage}
	}
	return e, nil
}

func first(md types.Metadata, key string) null.String {
	v, ok := md.FirstValue(key)
	return null.NewString(v, ok)
}
