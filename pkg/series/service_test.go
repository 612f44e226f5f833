package series

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vjranagit/mbseries/pkg/metadata"
	"github.com/vjranagit/mbseries/pkg/provider"
	"github.com/vjranagit/mbseries/pkg/types"
)

var (
	d1 = types.NewDate(2020, time.January, 1)
	d2 = types.NewDate(2020, time.February, 1)
	d3 = types.NewDate(2020, time.March, 1)
	d4 = types.NewDate(2020, time.April, 1)
)

func seeded() *provider.Memory {
	m := provider.NewMemory()
	m.AddSeries(&types.RawSeries{Name: "A", Dates: []types.Date{d1, d2, d3}, Values: []float64{1, 2, 3}})
	m.AddSeries(&types.RawSeries{Name: "B", Dates: []types.Date{d2, d3, d4}, Values: []float64{10, math.NaN(), 30}})
	m.AddReleases("A",
		&types.RawSeries{Name: "A", Dates: []types.Date{d1, d2}, Values: []float64{1, 2}},
		&types.RawSeries{Name: "A", Dates: []types.Date{d1, d2}, Values: []float64{1.5, 2}},
	)
	m.AddEntity(&types.Entity{Name: "A", Title: "Alpha", Metadata: types.Metadata{
		metadata.KeyRegion:                  {"us"},
		metadata.KeyConcept:                 {"gdp_total"},
		metadata.KeyRelease:                 {"rel_a"},
		metadata.KeyEntityState:             {"4"},
		metadata.KeyDiscontinuedReplacement: {"A2"},
	}})
	m.AddEntity(&types.Entity{Name: "rel_a", Metadata: types.Metadata{
		metadata.KeyNextReleaseEvent: {"2020-05-01T08:30:00Z"},
	}})
	m.AddPresentation(metadata.KeyConcept, "gdp_total", "GDP, Total")
	return m
}

func TestServiceAligned(t *testing.T) {
	svc := NewService(seeded(), Options{})

	res, err := svc.Aligned(context.Background(), []string{"A", "B", "X"})
	require.NoError(t, err)

	table := res.Table
	assert.Equal(t, []types.Date{d1, d2, d3, d4}, table.Axis)
	assert.Equal(t, []string{"A", "B"}, table.Columns)
	assert.False(t, table.At(d1, "B").Valid)
	assert.False(t, table.At(d3, "B").Valid)
	assert.False(t, table.At(d4, "A").Valid)
	assert.Equal(t, 30.0, table.At(d4, "B").Float64)
	assert.Equal(t, []string{"X"}, res.FailedIDs())
}

func TestServiceUnified(t *testing.T) {
	svc := NewService(seeded(), Options{DefaultCurrency: "EUR"})

	res, err := svc.Unified(context.Background(), []string{"A"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.Table.Columns)

	_, err = svc.Unified(context.Background(), []string{"A"}, "euro")
	assert.Error(t, err)
}

func TestServiceRevisions(t *testing.T) {
	svc := NewService(seeded(), Options{MaxRevisions: 5})

	table, err := svc.Revisions(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 1.5, table.At(d1, 1).Float64)
	assert.Equal(t, types.CountExact, table.Revisions.Status)

	_, err = svc.Revisions(context.Background(), "B")
	assert.True(t, errors.Is(err, types.ErrNoRevisions))
}

func TestServiceDescribe(t *testing.T) {
	svc := NewService(seeded(), Options{})

	res := svc.Describe(context.Background(), []string{"A", "missing"})
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.Equal(t, "Alpha", row.Title.String)
	assert.Equal(t, "United States", row.RegionLong.String)
	assert.Equal(t, "GDP, Total", row.ConceptLong)
	assert.Equal(t, types.NewDate(2020, time.May, 1), row.NextRelease)
	assert.Equal(t, types.UnknownDate, row.PreviousRelease)
	require.Len(t, res.Failures, 1)
}

func TestServiceStatus(t *testing.T) {
	svc := NewService(seeded(), Options{})

	st, err := svc.Status(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, st.Discontinued.Valid && st.Discontinued.Bool)
	assert.Equal(t, "A2", st.Replacement.String)
	assert.Equal(t, time.Date(2020, time.May, 1, 8, 30, 0, 0, time.UTC), st.NextRelease.UTC())
	assert.Equal(t, types.UnknownDate.Time(), st.PreviousRelease)

	st, err = svc.Status(context.Background(), "B")
	require.NoError(t, err)
	assert.False(t, st.Discontinued.Valid)
	assert.False(t, st.Replacement.Valid)

	region, err := svc.Field(context.Background(), "A", metadata.KeyRegion)
	require.NoError(t, err)
	assert.Equal(t, "us", region.String)
}

func TestServiceSearch(t *testing.T) {
	m := seeded()
	m.AddEntity(&types.Entity{Name: "C", Metadata: types.Metadata{
		metadata.KeyRegion:  {"de"},
		metadata.KeyConcept: {"gdp_total"},
	}})
	m.AddEntity(&types.Entity{Name: "D", Metadata: types.Metadata{
		metadata.KeyRegion:  {"fr"},
		metadata.KeyConcept: {"gdp_total"},
	}})
	m.MaxResults = 1

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := NewService(m, Options{Logger: logger})

	names, err := svc.Search(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, names)
	assert.Contains(t, buf.String(), "search results truncated")

	_, err = svc.Search(context.Background(), &provider.SearchQuery{Frequency: "hourly"})
	assert.Error(t, err)
}

func TestServiceBloombergTickers(t *testing.T) {
	svc := NewService(provider.NewMemory(), Options{})

	ids, err := svc.BloombergTickers([]string{"SPX Index"}, []string{"PX_LAST"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ih:bl:spx index:px_last"}, ids)
}
