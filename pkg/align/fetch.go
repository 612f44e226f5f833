package align

import (
	"context"
	"fmt"

	"github.com/vjranagit/mbseries/pkg/types"
)

// Fetcher returns one raw series per requested identifier, in order.
type Fetcher interface {
	FetchMany(ctx context.Context, ids []string) ([]*types.RawSeries, error)
}

// Result is an aligned table plus the identifiers that could not be included.
type Result struct {
	Table    *types.AlignedTable `json:"table"`
	Failures []error             `json:"-"`
}

// FailedIDs lists the identifiers of every failure, in request order.
func (r *Result) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failures))
	for _, err := range r.Failures {
		if id, ok := types.FailedID(err); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Fetch requests ids from f and aligns the series that came back clean.
func Fetch(ctx context.Context, f Fetcher, ids []string) (*Result, error) {
	raws, err := f.FetchMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series: %w", err)
	}
	return FromRaw(ids, raws)
}

// FromRaw unpacks and aligns raws, which must line up with ids. Series the
// provider flagged as failed are skipped and reported under their identifier;
// the batch itself only fails when the two slices disagree in length.
func FromRaw(ids []string, raws []*types.RawSeries) (*Result, error) {
	if len(ids) != len(raws) {
		return nil, fmt.Errorf("provider returned %d series for %d identifiers", len(raws), len(ids))
	}

	result := &Result{}
	unpacked := make([]types.UnpackedSeries, 0, len(ids))
	for i, raw := range raws {
		switch {
		case raw == nil:
			result.Failures = append(result.Failures, &types.ProviderError{ID: ids[i], Message: "no series returned"})
			continue
		case raw.IsError:
			result.Failures = append(result.Failures, &types.ProviderError{ID: ids[i], Message: raw.ErrorMessage})
			continue
		}
		if err := raw.Validate(); err != nil {
			result.Failures = append(result.Failures, &types.ProviderError{ID: ids[i], Message: err.Error()})
			continue
		}

		u := Unpack(raw)
		u.ID = ids[i]
		unpacked = append(unpacked, u)
	}

	result.Table = Align(unpacked, BuildAxis(unpacked...))
	return result, nil
}
