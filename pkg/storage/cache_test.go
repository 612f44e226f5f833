package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/vjranagit/mbseries/pkg/types"
)

func testSeries(name string, value float64) *types.RawSeries {
	return &types.RawSeries{
		Name:   name,
		Dates:  []types.Date{types.NewDate(2024, time.March, 31)},
		Values: []float64{value},
	}
}

func TestSeriesCache(t *testing.T) {
	cache := NewSeriesCache(100, 1*time.Minute)
	key := SnapshotKey{ID: "usgdp", Release: Current}

	if _, ok := cache.Get(key); ok {
		t.Error("Expected cache miss, got hit")
	}

	cache.Put(key, testSeries("usgdp", 42.0))

	cached, ok := cache.Get(key)
	if !ok {
		t.Fatal("Expected cache hit, got miss")
	}
	if cached.Values[0] != 42.0 {
		t.Errorf("Expected value 42.0, got %f", cached.Values[0])
	}

	// Releases are distinct entries
	if _, ok := cache.Get(SnapshotKey{ID: "usgdp", Release: 0}); ok {
		t.Error("Expected miss for release 0")
	}

	cache.Put(key, testSeries("usgdp", 43.0))
	cached, _ = cache.Get(key)
	if cached.Values[0] != 43.0 {
		t.Errorf("Expected updated value 43.0, got %f", cached.Values[0])
	}
	if cache.Size() != 1 {
		t.Errorf("Expected size 1 after update, got %d", cache.Size())
	}
}

func TestSeriesCacheTTL(t *testing.T) {
	cache := NewSeriesCache(100, 100*time.Millisecond)
	key := SnapshotKey{ID: "usgdp", Release: Current}

	cache.Put(key, testSeries("usgdp", 1))

	if _, ok := cache.Get(key); !ok {
		t.Error("Expected cache hit")
	}

	time.Sleep(150 * time.Millisecond)

	if stats := cache.Stats(); stats.Expired != 1 {
		t.Errorf("Expected 1 expired entry, got %d", stats.Expired)
	}

	if _, ok := cache.Get(key); ok {
		t.Error("Expected cache miss after TTL expiry")
	}
}

func TestSeriesCacheLRUEviction(t *testing.T) {
	cache := NewSeriesCache(3, 1*time.Minute)

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("series_%d", i)
		cache.Put(SnapshotKey{ID: id, Release: Current}, testSeries(id, float64(i)))
	}

	if cache.Size() != 3 {
		t.Errorf("Expected cache size 3, got %d", cache.Size())
	}

	if _, ok := cache.Get(SnapshotKey{ID: "series_0", Release: Current}); ok {
		t.Error("Expected series_0 to be evicted")
	}

	if _, ok := cache.Get(SnapshotKey{ID: "series_3", Release: Current}); !ok {
		t.Error("Expected series_3 to be in cache")
	}
}

func TestSeriesCacheStats(t *testing.T) {
	cache := NewSeriesCache(100, 1*time.Minute)

	if stats := cache.Stats(); stats.Size != 0 {
		t.Errorf("Expected initial size 0, got %d", stats.Size)
	}

	for i := 0; i < 10; i++ {
		cache.Put(SnapshotKey{ID: "usgdp", Release: i}, testSeries("usgdp", float64(i)))
	}

	stats := cache.Stats()
	if stats.Size != 10 {
		t.Errorf("Expected size 10, got %d", stats.Size)
	}
	if stats.Capacity != 100 {
		t.Errorf("Expected capacity 100, got %d", stats.Capacity)
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d", cache.Size())
	}
}

func TestFingerprint(t *testing.T) {
	a := fingerprint(SnapshotKey{ID: "usgdp", Release: 1})
	if a != fingerprint(SnapshotKey{ID: "usgdp", Release: 1}) {
		t.Error("Fingerprint should be deterministic")
	}
	if a == fingerprint(SnapshotKey{ID: "usgdp", Release: 2}) {
		t.Error("Different releases should have different fingerprints")
	}
	if fingerprint(SnapshotKey{ID: "ab", Release: 1}) == fingerprint(SnapshotKey{ID: "a", Release: 1}) {
		t.Error("Different ids should have different fingerprints")
	}
}
