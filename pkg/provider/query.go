package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vjranagit/mbseries/pkg/metadata"
)

// Search defaults.
const (
	DefaultConcept    = "gdp_total"
	DefaultEntityType = "TimeSeries"
	DefaultCurrency   = "USD"
)

var entityTypes = map[string]bool{
	"TimeSeries": true,
	"Release":    true,
	"Source":     true,
	"Index":      true,
	"Security":   true,
	"Region":     true,
	"RegionKey":  true,
	"Exchange":   true,
	"Issuer":     true,
}

var frequencies = map[string]bool{
	"annual":     true,
	"semiannual": true,
	"quarterly":  true,
	"bimonthly":  true,
	"monthly":    true,
	"weekly":     true,
	"daily":      true,
}

// SearchQuery enumerates every supported search option.
type SearchQuery struct {
	// Concept filters on the RegionKey attribute. Ignored when FreeText is set.
	Concept string `json:"concept,omitempty"`
	// EntityType restricts the kind of entity returned.
	EntityType string `json:"entity_type,omitempty"`
	// Regions restricts results to these region codes.
	Regions []string `json:"regions,omitempty"`
	// Frequency restricts results to one frequency; empty means any.
	Frequency string `json:"frequency,omitempty"`
	// SeasonAdjusted requires the SeasonAdj attribute.
	SeasonAdjusted bool `json:"season_adjusted,omitempty"`
	// IncludeDiscontinued also returns discontinued series.
	IncludeDiscontinued bool `json:"include_discontinued,omitempty"`
	// FreeText replaces the concept filter with a text search.
	FreeText string `json:"free_text,omitempty"`
}

// NewSearchQuery returns a query for the default concept over every region.
func NewSearchQuery() *SearchQuery {
	q := &SearchQuery{}
	q.applyDefaults()
	return q
}

func (q *SearchQuery) applyDefaults() {
	if q.Concept == "" {
		q.Concept = DefaultConcept
	}
	if q.EntityType == "" {
		q.EntityType = DefaultEntityType
	}
	if len(q.Regions) == 0 {
		q.Regions = metadata.RegionCodes()
	}
}

// Normalize fills unset fields with defaults and validates the result.
func (q *SearchQuery) Normalize() error {
	q.applyDefaults()
	q.Frequency = strings.ToLower(q.Frequency)
	return q.Validate()
}

// Validate rejects options the provider would not understand.
func (q *SearchQuery) Validate() error {
	var errs []error
	if !entityTypes[q.EntityType] {
		errs = append(errs, fmt.Errorf("unknown entity type %q", q.EntityType))
	}
	if q.Frequency != "" && !frequencies[q.Frequency] {
		errs = append(errs, fmt.Errorf("unknown frequency %q", q.Frequency))
	}
	for _, r := range q.Regions {
		if _, ok := metadata.RegionName(r); !ok {
			errs = append(errs, fmt.Errorf("unknown region %q", r))
		}
	}
	if q.FreeText == "" && q.Concept == "" {
		errs = append(errs, errors.New("either a concept or free text is required"))
	}
	return errors.Join(errs...)
}

// UnifiedRequest asks the provider for several series with conversions
// applied on its side.
type UnifiedRequest struct {
	IDs      []string `json:"ids"`
	Currency string   `json:"currency"`
}

// Validate checks the request before it is sent.
func (r *UnifiedRequest) Validate() error {
	if len(r.IDs) == 0 {
		return errors.New("at least one series is required")
	}
	if len(r.Currency) != 3 {
		return fmt.Errorf("invalid currency code %q", r.Currency)
	}
	for _, c := range r.Currency {
		if c < 'A' || c > 'Z' {
			return fmt.Errorf("invalid currency code %q", r.Currency)
		}
	}
	return nil
}
