package storage

import (
	"sort"
	"sync"

	"github.com/vjranagit/mbseries/pkg/types"
)

// DateRange is the first and last observation date of a snapshot
type DateRange struct {
	First types.Date
	Last  types.Date
}

// Catalog keeps track of which series and releases the store holds
type Catalog struct {
	mu sync.RWMutex
	// Maps series identifier to its stored snapshots
	series map[string]*catalogEntry
}

// catalogEntry holds what is known about one stored series
type catalogEntry struct {
	releases map[int]DateRange
}

// SeriesInfo summarizes the stored snapshots of one series
type SeriesInfo struct {
	ID       string
	Releases []int
	Span     DateRange
}

// NewCatalog creates a new catalog
func NewCatalog() *Catalog {
	return &Catalog{
		series: make(map[string]*catalogEntry),
	}
}

// Add records a stored snapshot
func (c *Catalog) Add(key SnapshotKey, r DateRange) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.series[key.ID]
	if !ok {
		entry = &catalogEntry{releases: make(map[int]DateRange)}
		c.series[key.ID] = entry
	}
	entry.releases[key.Release] = r
}

// Remove forgets a snapshot, and the series once it has none left
func (c *Catalog) Remove(key SnapshotKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.series[key.ID]
	if !ok {
		return
	}
	delete(entry.releases, key.Release)
	if len(entry.releases) == 0 {
		delete(c.series, key.ID)
	}
}

// Get returns the stored releases of a series, sorted, and the widest date
// span they cover
func (c *Catalog) Get(id string) (SeriesInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.series[id]
	if !ok {
		return SeriesInfo{}, false
	}

	info := SeriesInfo{ID: id, Releases: make([]int, 0, len(entry.releases))}
	for rel, r := range entry.releases {
		info.Releases = append(info.Releases, rel)
		info.Span = widen(info.Span, r)
	}
	sort.Ints(info.Releases)
	return info, true
}

// IDs returns every catalogued series identifier, sorted
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.series))
	for id := range c.series {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SeriesCount returns the number of catalogued series
func (c *Catalog) SeriesCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.series)
}

// SnapshotCount returns the number of catalogued snapshots
func (c *Catalog) SnapshotCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, entry := range c.series {
		n += len(entry.releases)
	}
	return n
}

func widen(a, b DateRange) DateRange {
	if a.First.IsZero() || (!b.First.IsZero() && b.First.Before(a.First)) {
		a.First = b.First
	}
	if a.Last.IsZero() || a.Last.Before(b.Last) {
		a.Last = b.Last
	}
	return a
}
