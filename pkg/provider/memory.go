package provider

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/vjranagit/mbseries/pkg/metadata"
	"github.com/vjranagit/mbseries/pkg/types"
)

// Memory is an in-process Provider backed by seeded data. It performs no
// conversions; FetchUnified returns the stored series unchanged.
type Memory struct {
	mu           sync.RWMutex
	series       map[string]*types.RawSeries
	releases     map[string][]*types.RawSeries
	entities     map[string]*types.Entity
	presentation map[string]map[string]string

	// MaxResults caps search results; zero means unlimited.
	MaxResults int
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{
		series:       make(map[string]*types.RawSeries),
		releases:     make(map[string][]*types.RawSeries),
		entities:     make(map[string]*types.Entity),
		presentation: make(map[string]map[string]string),
	}
}

// AddSeries seeds a series and, when none exists yet, a matching entity.
func (m *Memory) AddSeries(s *types.RawSeries) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.series[s.Name] = s
	if _, ok := m.entities[s.Name]; !ok {
		m.entities[s.Name] = &types.Entity{Name: s.Name, Title: s.Title, Metadata: types.Metadata{}}
	}
}

// AddReleases seeds the release history of a series, original first.
func (m *Memory) AddReleases(id string, releases ...*types.RawSeries) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases[id] = releases
}

// AddEntity seeds an entity.
func (m *Memory) AddEntity(e *types.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.Name] = e
}

// AddPresentation seeds the display text of a metadata value.
func (m *Memory) AddPresentation(key, value, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.presentation[key] == nil {
		m.presentation[key] = make(map[string]string)
	}
	m.presentation[key][value] = text
}

// FetchOne implements Provider.FetchOne
func (m *Memory) FetchOne(ctx context.Context, id string) (*types.RawSeries, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.series[id]; ok {
		return s, nil
	}
	return &types.RawSeries{Name: id, IsError: true, ErrorMessage: fmt.Sprintf("the series %s was not found", id)}, nil
}

// FetchMany implements Provider.FetchMany
func (m *Memory) FetchMany(ctx context.Context, ids []string) ([]*types.RawSeries, error) {
	out := make([]*types.RawSeries, len(ids))
	for i, id := range ids {
		s, err := m.FetchOne(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// FetchUnified implements Provider.FetchUnified
func (m *Memory) FetchUnified(ctx context.Context, req *UnifiedRequest) ([]*types.RawSeries, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return m.FetchMany(ctx, req.IDs)
}

// FetchWithRevisions implements Provider.FetchWithRevisions
func (m *Memory) FetchWithRevisions(ctx context.Context, id string) (History, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	releases := m.releases[id]
	h := &memoryHistory{id: id, releases: releases}
	if len(releases) == 0 {
		h.errorMessage = fmt.Sprintf("no revision history stored for %s", id)
	}
	return h, nil
}

type memoryHistory struct {
	id           string
	releases     []*types.RawSeries
	errorMessage string
}

func (h *memoryHistory) HasRevisions() bool {
	return len(h.releases) > 1
}

func (h *memoryHistory) ErrorMessage() string {
	return h.errorMessage
}

// Release returns release n. Releases past the last one come back wholly
// missing on the original release's dates.
func (h *memoryHistory) Release(ctx context.Context, n int) (*types.RawSeries, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid release index %d", n)
	}
	if n < len(h.releases) {
		return h.releases[n], nil
	}

	blank := &types.RawSeries{Name: h.id}
	if len(h.releases) > 0 {
		blank.Dates = h.releases[0].Dates
		blank.Values = make([]float64, len(blank.Dates))
		for i := range blank.Values {
			blank.Values[i] = math.NaN()
		}
	}
	return blank, nil
}

// FetchEntity implements Provider.FetchEntity
func (m *Memory) FetchEntity(ctx context.Context, id string) (*types.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.entities[id]; ok {
		return e, nil
	}
	return &types.Entity{Name: id, IsError: true, ErrorMessage: fmt.Sprintf("the entity %s was not found", id)}, nil
}

// PresentationText implements Provider.PresentationText
func (m *Memory) PresentationText(ctx context.Context, key, value string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if text, ok := m.presentation[key][value]; ok {
		return text, nil
	}
	return value, nil
}

// Search implements Provider.Search. Results are ordered by entity name.
func (m *Memory) Search(ctx context.Context, q *SearchQuery) (*types.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search query: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.entities))
	for name := range m.entities {
		names = append(names, name)
	}
	sort.Strings(names)

	res := &types.SearchResult{Entities: []types.Entity{}}
	for _, name := range names {
		e := m.entities[name]
		if e.IsError || !matches(e, q) {
			continue
		}
		if m.MaxResults > 0 && len(res.Entities) == m.MaxResults {
			res.Truncated = true
			break
		}
		res.Entities = append(res.Entities, *e)
	}
	return res, nil
}

func matches(e *types.Entity, q *SearchQuery) bool {
	md := e.Metadata

	entityType, ok := md.FirstValue(metadata.KeyEntityType)
	if !ok {
		entityType = DefaultEntityType
	}
	if entityType != q.EntityType {
		return false
	}

	if q.FreeText != "" {
		text := strings.ToLower(q.FreeText)
		if !strings.Contains(strings.ToLower(e.Name), text) && !strings.Contains(strings.ToLower(e.Title), text) {
			return false
		}
	} else if concept, _ := md.FirstValue(metadata.KeyConcept); concept != q.Concept {
		return false
	}

	region, _ := md.FirstValue(metadata.KeyRegion)
	if !contains(q.Regions, region) {
		return false
	}

	if q.Frequency != "" {
		if freq, _ := md.FirstValue(metadata.KeyFrequency); freq != q.Frequency {
			return false
		}
	}

	if q.SeasonAdjusted && len(md.Values(metadata.KeySeasonAdjusted)) == 0 {
		return false
	}

	if !q.IncludeDiscontinued {
		if state, ok := md.FirstInt(metadata.KeyEntityState); ok && state == metadata.StateDiscontinued {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
