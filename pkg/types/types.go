package types

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/guregu/null/v6"
)

// RawSeries is one series as returned by the provider. Missing observations
// are encoded as NaN.
type RawSeries struct {
	Name         string
	Title        string
	Frequency    string
	Dates        []Date
	Values       []float64
	IsError      bool
	ErrorMessage string
}

// Validate checks the parallel-array and ordering invariants.
func (s *RawSeries) Validate() error {
	if len(s.Dates) != len(s.Values) {
		return fmt.Errorf("series %s: %d dates but %d values", s.Name, len(s.Dates), len(s.Values))
	}
	for i := 1; i < len(s.Dates); i++ {
		if !s.Dates[i-1].Before(s.Dates[i]) {
			return fmt.Errorf("series %s: dates not strictly ascending at %s", s.Name, s.Dates[i])
		}
	}
	return nil
}

// AllMissing reports whether no value of the series is observed. An empty
// series counts as wholly missing.
func (s *RawSeries) AllMissing() bool {
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

// UnpackedSeries is a date-indexed sequence of optional values.
type UnpackedSeries struct {
	ID     string
	Dates  []Date
	Values []null.Float
}

// Len returns the number of dates in the series.
func (u UnpackedSeries) Len() int {
	return len(u.Dates)
}

// Lookup builds a date -> value map for the series.
func (u UnpackedSeries) Lookup() map[Date]null.Float {
	m := make(map[Date]null.Float, len(u.Dates))
	for i, d := range u.Dates {
		m[d] = u.Values[i]
	}
	return m
}

// AlignedTable holds several series projected onto one date axis.
// Values is indexed [column][row].
type AlignedTable struct {
	Axis    []Date
	Columns []string
	Values  [][]null.Float
}

// Rows returns the number of rows (axis length).
func (t *AlignedTable) Rows() int {
	return len(t.Axis)
}

// Column returns the values of the named column.
func (t *AlignedTable) Column(id string) ([]null.Float, bool) {
	for i, c := range t.Columns {
		if c == id {
			return t.Values[i], true
		}
	}
	return nil, false
}

// At returns the cell at date d for column id. Unknown dates and columns
// yield a missing value.
func (t *AlignedTable) At(d Date, id string) null.Float {
	col, ok := t.Column(id)
	if !ok {
		return null.Float{}
	}
	row, ok := searchAxis(t.Axis, d)
	if !ok {
		return null.Float{}
	}
	return col[row]
}

type tableRow struct {
	Date   Date         `json:"date"`
	Values []null.Float `json:"values"`
}

// MarshalJSON renders the table row by row.
func (t *AlignedTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Columns []string   `json:"columns"`
		Rows    []tableRow `json:"rows"`
	}{
		Columns: t.Columns,
		Rows:    rowsOf(t.Axis, t.Values),
	})
}

// RevisionLabel names one column of a revision table.
type RevisionLabel struct {
	ID       string `json:"id"`
	Revision string `json:"revision"`
}

// CountStatus describes how the revision count was obtained.
type CountStatus string

const (
	CountExact       CountStatus = "exact"
	CountExceeded    CountStatus = "exceeded"
	CountUnavailable CountStatus = "unavailable"
)

// RevisionCount is the diagnostic outcome of the revision count.
// Count is only meaningful when Status is CountExact.
type RevisionCount struct {
	Count  int         `json:"count"`
	Status CountStatus `json:"status"`
}

// RevisionTable holds the original release and the first revision of one
// series on the original release's own dates.
type RevisionTable struct {
	ID        string
	Axis      []Date
	Columns   []RevisionLabel
	Values    [][]null.Float
	Revisions RevisionCount
}

// At returns the value of revision column col at date d.
func (t *RevisionTable) At(d Date, col int) null.Float {
	if col < 0 || col >= len(t.Values) {
		return null.Float{}
	}
	row, ok := searchAxis(t.Axis, d)
	if !ok {
		return null.Float{}
	}
	return t.Values[col][row]
}

// MarshalJSON renders the table row by row.
func (t *RevisionTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string          `json:"id"`
		Columns   []RevisionLabel `json:"columns"`
		Rows      []tableRow      `json:"rows"`
		Revisions RevisionCount   `json:"revisions"`
	}{
		ID:        t.ID,
		Columns:   t.Columns,
		Rows:      rowsOf(t.Axis, t.Values),
		Revisions: t.Revisions,
	})
}

// DescriptiveRow is the metadata summary of one series.
type DescriptiveRow struct {
	ID              string      `json:"id"`
	Title           null.String `json:"title"`
	Frequency       null.String `json:"frequency"`
	RegionShort     null.String `json:"region_short"`
	RegionLong      null.String `json:"region_long"`
	Currency        null.String `json:"currency"`
	Source          null.String `json:"source"`
	Release         null.String `json:"release"`
	ConceptShort    string      `json:"concept_short"`
	ConceptLong     string      `json:"concept_long"`
	NextRelease     Date        `json:"next_release"`
	PreviousRelease Date        `json:"previous_release"`
}

func searchAxis(axis []Date, d Date) (int, bool) {
	i := sort.Search(len(axis), func(i int) bool { return !axis[i].Before(d) })
	if i < len(axis) && axis[i] == d {
		return i, true
	}
	return 0, false
}

func rowsOf(axis []Date, values [][]null.Float) []tableRow {
	rows := make([]tableRow, len(axis))
	for r, d := range axis {
		row := tableRow{Date: d, Values: make([]null.Float, len(values))}
		for c := range values {
			row.Values[c] = values[c][r]
		}
		rows[r] = row
	}
	return rows
}
