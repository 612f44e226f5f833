// Package align turns raw provider series into date-indexed sequences and
// projects batches of them onto one shared date axis.
package align

import (
	"math"
	"sort"

	"github.com/guregu/null/v6"
	"github.com/vjranagit/mbseries/pkg/types"
)

// Unpack zips the dates and values of raw into an UnpackedSeries. NaN values
// become missing; every other value, zero and negatives included, is an
// observation. The caller must have checked raw.IsError.
func Unpack(raw *types.RawSeries) types.UnpackedSeries {
	n := len(raw.Dates)
	if len(raw.Values) < n {
		n = len(raw.Values)
	}

	out := types.UnpackedSeries{
		ID:     raw.Name,
		Dates:  make([]types.Date, n),
		Values: make([]null.Float, n),
	}
	copy(out.Dates, raw.Dates[:n])
	for i, v := range raw.Values[:n] {
		if !math.IsNaN(v) {
			out.Values[i] = null.FloatFrom(v)
		}
	}
	return out
}

// BuildAxis returns the sorted, duplicate-free union of every date present in
// any of the series, whether or not its value is missing.
func BuildAxis(series ...types.UnpackedSeries) []types.Date {
	seen := make(map[types.Date]struct{})
	axis := make([]types.Date, 0)
	for _, s := range series {
		for _, d := range s.Dates {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			axis = append(axis, d)
		}
	}

	sort.Slice(axis, func(i, j int) bool { return axis[i].Before(axis[j]) })
	return axis
}

// Align projects every series onto axis. Cells are the series' own value at
// that date, or missing when the series has no such date; nothing is filled
// or interpolated.
//
// Columns follow input order. When an identifier repeats, the column keeps
// the position of its first occurrence and the values of its last.
func Align(series []types.UnpackedSeries, axis []types.Date) *types.AlignedTable {
	table := &types.AlignedTable{
		Axis:    axis,
		Columns: make([]string, 0, len(series)),
		Values:  make([][]null.Float, 0, len(series)),
	}

	position := make(map[string]int, len(series))
	for _, s := range series {
		col := project(s, axis)
		if i, ok := position[s.ID]; ok {
			table.Values[i] = col
			continue
		}
		position[s.ID] = len(table.Columns)
		table.Columns = append(table.Columns, s.ID)
		table.Values = append(table.Values, col)
	}
	return table
}

// project reads s at every axis date through a hashed lookup.
func project(s types.UnpackedSeries, axis []types.Date) []null.Float {
	lookup := s.Lookup()
	col := make([]null.Float, len(axis))
	for r, d := range axis {
		col[r] = lookup[d]
	}
	return col
}
