package storage

import (
	"container/list"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vjranagit/mbseries/pkg/types"
)

// SeriesCache implements an in-memory LRU cache of raw series snapshots
type SeriesCache struct {
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
	cache    map[uint64]*cacheEntry
	lru      *list.List
}

// cacheEntry represents a cached snapshot
type cacheEntry struct {
	hash      uint64
	key       SnapshotKey
	series    *types.RawSeries
	timestamp time.Time
	element   *list.Element
}

// NewSeriesCache creates a new series cache
func NewSeriesCache(capacity int, ttl time.Duration) *SeriesCache {
	return &SeriesCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[uint64]*cacheEntry),
		lru:      list.New(),
	}
}

// Get retrieves a cached snapshot
func (sc *SeriesCache) Get(key SnapshotKey) (*types.RawSeries, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	hash := fingerprint(key)
	entry, exists := sc.cache[hash]
	if !exists || entry.key != key {
		return nil, false
	}

	if time.Since(entry.timestamp) > sc.ttl {
		sc.removeLocked(hash)
		return nil, false
	}

	// Move to front of LRU list (most recently used)
	sc.lru.MoveToFront(entry.element)

	return entry.series, true
}

// Put stores a snapshot in the cache
func (sc *SeriesCache) Put(key SnapshotKey, series *types.RawSeries) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	hash := fingerprint(key)

	if entry, exists := sc.cache[hash]; exists {
		entry.key = key
		entry.series = series
		entry.timestamp = time.Now()
		sc.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{
		hash:      hash,
		key:       key,
		series:    series,
		timestamp: time.Now(),
	}

	entry.element = sc.lru.PushFront(entry)
	sc.cache[hash] = entry

	// Evict oldest entry if cache is full
	if sc.lru.Len() > sc.capacity {
		if oldest := sc.lru.Back(); oldest != nil {
			sc.removeLocked(oldest.Value.(*cacheEntry).hash)
		}
	}
}

// removeLocked removes an entry from the cache (must hold lock)
func (sc *SeriesCache) removeLocked(hash uint64) {
	if entry, exists := sc.cache[hash]; exists {
		sc.lru.Remove(entry.element)
		delete(sc.cache, hash)
	}
}

// Clear clears all cache entries
func (sc *SeriesCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.cache = make(map[uint64]*cacheEntry)
	sc.lru = list.New()
}

// Size returns the current cache size
func (sc *SeriesCache) Size() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.cache)
}

// Stats returns cache statistics
func (sc *SeriesCache) Stats() CacheStats {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	expired := 0
	for _, entry := range sc.cache {
		if time.Since(entry.timestamp) > sc.ttl {
			expired++
		}
	}

	return CacheStats{
		Size:     len(sc.cache),
		Capacity: sc.capacity,
		Expired:  expired,
	}
}

// CacheStats contains cache statistics
type CacheStats struct {
	Size     int
	Capacity int
	Expired  int
}

// fingerprint hashes a snapshot key
func fingerprint(key SnapshotKey) uint64 {
	d := xxhash.New()
	d.WriteString(key.ID)
	d.Write([]byte{0})
	d.WriteString(strconv.Itoa(key.Release))
	return d.Sum64()
}
