package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vjranagit/mbseries/pkg/types"
)

type stubSource struct {
	entities     map[string]*types.Entity
	presentation map[string]string
	failing      map[string]bool
	calls        int
}

func (s *stubSource) FetchEntity(ctx context.Context, id string) (*types.Entity, error) {
	s.calls++
	if s.failing[id] {
		return nil, errors.New("connection reset")
	}
	e, ok := s.entities[id]
	if !ok {
		return &types.Entity{Name: id, IsError: true, ErrorMessage: "unknown entity"}, nil
	}
	return e, nil
}

func (s *stubSource) PresentationText(ctx context.Context, key, value string) (string, error) {
	return s.presentation[value], nil
}

func newStub() *stubSource {
	return &stubSource{
		entities: map[string]*types.Entity{
			"usgdp": {
				Name:  "usgdp",
				Title: "United States, Gross Domestic Product",
				Metadata: types.Metadata{
					KeyRegion:    {"us"},
					KeyCurrency:  {"USD"},
					KeyDatabase:  {"BEA"},
					KeyFrequency: {"quarterly"},
					KeyRelease:   {"rel_usgdp"},
					KeyConcept:   {"gdp_total"},
				},
			},
			"rel_usgdp": {
				Name: "rel_usgdp",
				Metadata: types.Metadata{
					KeyNextReleaseEvent: {"2024-07-25T08:30:00-04:00"},
				},
			},
			"xxgdp": {
				Name:  "xxgdp",
				Title: "Somewhere, GDP",
				Metadata: types.Metadata{
					KeyRegion: {"xx"},
				},
			},
			"old": {
				Name: "old",
				Metadata: types.Metadata{
					KeyEntityState:             {"4"},
					KeyDiscontinuedComment:     {"moved"},
					KeyDiscontinuedReplacement: {"new"},
				},
			},
			"ambiguous": {
				Name: "ambiguous",
				Metadata: types.Metadata{
					KeyEntityState:             {"7"},
					KeyDiscontinuedReplacement: {"a", "b"},
				},
			},
		},
		presentation: map[string]string{"gdp_total": "GDP, Total"},
		failing:      map[string]bool{"flaky": true},
	}
}

func TestDescribe(t *testing.T) {
	d := NewDescriber(newStub(), nil)
	res := d.Describe(context.Background(), []string{"usgdp", "xxgdp"})

	require.Empty(t, res.Failures)
	require.Len(t, res.Rows, 2)

	us := res.Rows[0]
	assert.Equal(t, "usgdp", us.ID)
	assert.Equal(t, "United States, Gross Domestic Product", us.Title.String)
	assert.Equal(t, "quarterly", us.Frequency.String)
	assert.Equal(t, "us", us.RegionShort.String)
	assert.Equal(t, "United States", us.RegionLong.String)
	assert.Equal(t, "USD", us.Currency.String)
	assert.Equal(t, "BEA", us.Source.String)
	assert.Equal(t, "rel_usgdp", us.Release.String)
	assert.Equal(t, "gdp_total", us.ConceptShort)
	assert.Equal(t, "GDP, Total", us.ConceptLong)
	assert.Equal(t, types.NewDate(2024, time.July, 25), us.NextRelease)
	assert.Equal(t, types.UnknownDate, us.PreviousRelease)

	xx := res.Rows[1]
	assert.Equal(t, "xx", xx.RegionShort.String)
	assert.False(t, xx.RegionLong.Valid)
	assert.False(t, xx.Currency.Valid)
	assert.Empty(t, xx.ConceptShort)
	assert.Equal(t, types.UnknownDate, xx.NextRelease)
	assert.Equal(t, types.UnknownDate, xx.PreviousRelease)
}

func TestDescribeSkipsAndReports(t *testing.T) {
	d := NewDescriber(newStub(), nil)
	res := d.Describe(context.Background(), []string{"flaky", "usgdp", "missing"})

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "usgdp", res.Rows[0].ID)
	require.Len(t, res.Failures, 2)

	var se *types.SeriesError
	require.ErrorAs(t, res.Failures[0], &se)
	assert.Equal(t, "flaky", se.ID)

	var pe *types.ProviderError
	require.ErrorAs(t, res.Failures[1], &pe)
	assert.Equal(t, "missing", pe.ID)
}

func TestReleaseTime(t *testing.T) {
	d := NewDescriber(newStub(), nil)
	ctx := context.Background()

	next, err := d.ReleaseTime(ctx, "usgdp", NextRelease)
	require.NoError(t, err)
	assert.Equal(t, 8, next.Hour())
	_, offset := next.Zone()
	assert.Equal(t, -4*3600, offset)

	prev, err := d.ReleaseTime(ctx, "usgdp", PreviousRelease)
	require.NoError(t, err)
	assert.True(t, prev.Equal(time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)))

	date, err := d.ReleaseDate(ctx, "xxgdp", NextRelease)
	require.NoError(t, err)
	assert.Equal(t, types.UnknownDate, date)
}

func TestParseReleaseEvent(t *testing.T) {
	ev, ok := ParseReleaseEvent("next")
	assert.True(t, ok)
	assert.Equal(t, NextRelease, ev)

	ev, ok = ParseReleaseEvent("previous")
	assert.True(t, ok)
	assert.Equal(t, "previous", ev.String())

	_, ok = ParseReleaseEvent("last")
	assert.False(t, ok)
}

func TestDiscontinued(t *testing.T) {
	d := NewDescriber(newStub(), nil)
	ctx := context.Background()

	v, err := d.Discontinued(ctx, "old")
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.True(t, v.Bool)

	v, err = d.Discontinued(ctx, "ambiguous")
	require.NoError(t, err)
	assert.False(t, v.Valid)

	v, err = d.Discontinued(ctx, "usgdp")
	require.NoError(t, err)
	assert.False(t, v.Valid)
}

func TestReplacement(t *testing.T) {
	d := NewDescriber(newStub(), nil)
	ctx := context.Background()

	r, err := d.Replacement(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "new", r)

	r, err = d.Replacement(ctx, "usgdp")
	require.NoError(t, err)
	assert.Empty(t, r)

	_, err = d.Replacement(ctx, "ambiguous")
	assert.Error(t, err)
}

func TestFieldAndConcept(t *testing.T) {
	d := NewDescriber(newStub(), nil)
	ctx := context.Background()

	v, err := d.Field(ctx, "usgdp", KeyCurrency)
	require.NoError(t, err)
	assert.Equal(t, "USD", v.String)

	v, err = d.Field(ctx, "usgdp", "NoSuchKey")
	require.NoError(t, err)
	assert.False(t, v.Valid)

	short, long, err := d.Concept(ctx, "usgdp")
	require.NoError(t, err)
	assert.Equal(t, "gdp_total", short)
	assert.Equal(t, "GDP, Total", long)
}

func TestRegionBijection(t *testing.T) {
	codes := RegionCodes()
	require.Len(t, codes, 38)

	for _, code := range codes {
		name, ok := RegionName(code)
		require.True(t, ok, code)
		back, ok := RegionCode(name)
		require.True(t, ok, name)
		assert.Equal(t, code, back)
	}
}

func TestRegionUnknown(t *testing.T) {
	_, ok := RegionName("atlantis")
	assert.False(t, ok)
	_, ok = RegionCode("Atlantis")
	assert.False(t, ok)

	name, _ := RegionName("br")
	assert.Equal(t, "Brazil", name)
	code, _ := RegionCode("Brazil")
	assert.Equal(t, "br", code)
}

func TestRegionCodesIsACopy(t *testing.T) {
	codes := RegionCodes()
	codes[0] = "mutated"
	assert.NotEqual(t, "mutated", RegionCodes()[0])
}
