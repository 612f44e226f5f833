package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/vjranagit/mbseries/pkg/storage"
	"github.com/vjranagit/mbseries/pkg/types"
)

// CacheStats counts lookups served by Cached.
type CacheStats struct {
	Hits      uint64
	StoreHits uint64
	Misses    uint64
}

// Cached decorates a Provider with the in-memory series cache and, when
// configured, the persistent snapshot store. Only series and releases go
// through the cache; every other call is passed through.
type Cached struct {
	Provider

	cache  *storage.SeriesCache
	store  storage.Store
	logger *slog.Logger

	hits      atomic.Uint64
	storeHits atomic.Uint64
	misses    atomic.Uint64
}

// NewCached wraps p. Either cache or store may be nil.
func NewCached(p Provider, cache *storage.SeriesCache, store storage.Store, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{Provider: p, cache: cache, store: store, logger: logger}
}

// FetchOne implements Provider.FetchOne
func (c *Cached) FetchOne(ctx context.Context, id string) (*types.RawSeries, error) {
	out, err := c.FetchMany(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// FetchMany implements Provider.FetchMany. Ids missing from both cache
// layers are fetched upstream in a single call.
func (c *Cached) FetchMany(ctx context.Context, ids []string) ([]*types.RawSeries, error) {
	out := make([]*types.RawSeries, len(ids))
	var missing []string
	var missingAt []int

	for i, id := range ids {
		if s, ok := c.lookup(ctx, storage.SnapshotKey{ID: id, Release: storage.Current}); ok {
			out[i] = s
			continue
		}
		missing = append(missing, id)
		missingAt = append(missingAt, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.Provider.FetchMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("provider returned %d series for %d identifiers", len(fetched), len(missing))
	}
	for j, s := range fetched {
		out[missingAt[j]] = s
		c.remember(ctx, storage.SnapshotKey{ID: missing[j], Release: storage.Current}, s)
	}
	return out, nil
}

// FetchWithRevisions implements Provider.FetchWithRevisions. Numbered
// releases are immutable, so they are cached without expiry.
func (c *Cached) FetchWithRevisions(ctx context.Context, id string) (History, error) {
	h, err := c.Provider.FetchWithRevisions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &cachedHistory{History: h, owner: c, id: id}, nil
}

type cachedHistory struct {
	History
	owner *Cached
	id    string
}

func (h *cachedHistory) Release(ctx context.Context, n int) (*types.RawSeries, error) {
	key := storage.SnapshotKey{ID: h.id, Release: n}
	if s, ok := h.owner.lookup(ctx, key); ok {
		return s, nil
	}

	s, err := h.History.Release(ctx, n)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &types.ProviderError{ID: h.id, Message: fmt.Sprintf("release %d not returned", n)}
	}
	// An all-missing release marks the end of the history, which can still move.
	if !s.AllMissing() {
		h.owner.remember(ctx, key, s)
	}
	return s, nil
}

// Stats returns the hit and miss counters.
func (c *Cached) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		StoreHits: c.storeHits.Load(),
		Misses:    c.misses.Load(),
	}
}

func (c *Cached) lookup(ctx context.Context, key storage.SnapshotKey) (*types.RawSeries, bool) {
	if c.cache != nil {
		if s, ok := c.cache.Get(key); ok {
			c.hits.Add(1)
			return s, true
		}
	}

	if c.store != nil {
		s, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.logger.Warn("snapshot read failed", "id", key.ID, "release", key.Release, "error", err)
		} else if ok {
			c.storeHits.Add(1)
			if c.cache != nil {
				c.cache.Put(key, s)
			}
			return s, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

func (c *Cached) remember(ctx context.Context, key storage.SnapshotKey, s *types.RawSeries) {
	if s == nil || s.IsError || s.Validate() != nil {
		return
	}
	if c.cache != nil {
		c.cache.Put(key, s)
	}
	if c.store != nil {
		if err := c.store.Put(ctx, key, s); err != nil {
			c.logger.Warn("snapshot write failed", "id", key.ID, "release", key.Release, "error", err)
		}
	}
}
