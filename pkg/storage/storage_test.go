package storage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/vjranagit/mbseries/pkg/types"
)

func newTestStore(t *testing.T, dir string) Store {
	t.Helper()

	store, err := NewStore(&Config{
		Path:             dir,
		RetentionDays:    1,
		CompressionLevel: 3,
	})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	return store
}

func TestBadgerStorePutAndGet(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	defer store.Close()

	ctx := context.Background()
	series := &types.RawSeries{
		Name:      "usgdp",
		Title:     "United States, GDP",
		Frequency: "quarterly",
		Dates:     monthEnds(12),
		Values:    []float64{1, 2, math.NaN(), 4, 5, 6, 7, 8, 9, 10, 11, 12},
	}

	key := SnapshotKey{ID: "usgdp", Release: Current}
	if err := store.Put(ctx, key, series); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	got, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if !ok {
		t.Fatal("Expected snapshot to be found")
	}

	if got.Name != "usgdp" || got.Title != series.Title || got.Frequency != "quarterly" {
		t.Errorf("Descriptive fields not preserved: %+v", got)
	}
	if len(got.Dates) != 12 {
		t.Fatalf("Expected 12 dates, got %d", len(got.Dates))
	}
	for i := range series.Dates {
		if got.Dates[i] != series.Dates[i] {
			t.Errorf("Date mismatch at %d", i)
		}
	}
	if !math.IsNaN(got.Values[2]) {
		t.Errorf("Expected NaN at index 2, got %f", got.Values[2])
	}

	// Other releases are separate keys
	if _, ok, _ := store.Get(ctx, SnapshotKey{ID: "usgdp", Release: 0}); ok {
		t.Error("Expected release 0 to be absent")
	}
}

func TestBadgerStoreRejectsInvalid(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	defer store.Close()

	ctx := context.Background()

	failed := &types.RawSeries{Name: "x", IsError: true, ErrorMessage: "unknown"}
	if err := store.Put(ctx, SnapshotKey{ID: "x", Release: Current}, failed); err == nil {
		t.Error("Expected error storing a failed series")
	}

	bad := &types.RawSeries{Name: "x", Dates: monthEnds(2), Values: []float64{1}}
	if err := store.Put(ctx, SnapshotKey{ID: "x", Release: Current}, bad); err == nil {
		t.Error("Expected error storing a malformed series")
	}
}

func TestBadgerStoreCatalogSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := newTestStore(t, dir)
	for rel := 0; rel < 3; rel++ {
		s := &types.RawSeries{Name: "usgdp", Dates: monthEnds(4), Values: []float64{1, 2, 3, float64(rel)}}
		if err := store.Put(ctx, SnapshotKey{ID: "usgdp", Release: rel}, s); err != nil {
			t.Fatalf("Failed to put release %d: %v", rel, err)
		}
	}
	empty := &types.RawSeries{Name: "segdp"}
	if err := store.Put(ctx, SnapshotKey{ID: "se/gdp", Release: Current}, empty); err != nil {
		t.Fatalf("Failed to put empty series: %v", err)
	}
	store.Close()

	store = newTestStore(t, dir)
	defer store.Close()

	stats := store.Stats()
	if stats.Series != 2 {
		t.Errorf("Expected 2 series, got %d", stats.Series)
	}
	if stats.Snapshots != 4 {
		t.Errorf("Expected 4 snapshots, got %d", stats.Snapshots)
	}

	list := store.List()
	if len(list) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(list))
	}
	if list[0].ID != "se/gdp" || list[1].ID != "usgdp" {
		t.Errorf("Unexpected ids: %s, %s", list[0].ID, list[1].ID)
	}
	if got := list[1].Releases; len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("Unexpected releases: %v", got)
	}
	if list[1].Span.First != monthEnds(1)[0] {
		t.Errorf("Unexpected span start: %s", list[1].Span.First)
	}

	got, ok, err := store.Get(ctx, SnapshotKey{ID: "se/gdp", Release: Current})
	if err != nil || !ok {
		t.Fatalf("Expected empty series to round-trip, got ok=%v err=%v", ok, err)
	}
	if len(got.Dates) != 0 || len(got.Values) != 0 {
		t.Errorf("Expected empty series, got %d dates", len(got.Dates))
	}
}

func TestKeyRoundTrip(t *testing.T) {
	for _, key := range []SnapshotKey{
		{ID: "usgdp", Release: Current},
		{ID: "ih:bl:spx index", Release: 0},
		{ID: "a/b", Release: 499},
	} {
		got, ok := parseKey(generateKey(key))
		if !ok {
			t.Fatalf("Failed to parse key for %+v", key)
		}
		if got != key {
			t.Errorf("Expected %+v, got %+v", key, got)
		}
	}

	if _, ok := parseKey([]byte("other/key")); ok {
		t.Error("Expected foreign key to be rejected")
	}
}

func TestConfigRetention(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetentionDays = 2
	if cfg.Retention() != 48*time.Hour {
		t.Errorf("Expected 48h retention, got %s", cfg.Retention())
	}
}
