package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vjranagit/mbseries/pkg/types"
)

// Current is the release index used for a series' current vintage, as
// opposed to a numbered historical release.
const Current = -1

var keyPrefix = []byte("series/")

// SnapshotKey identifies one stored vintage of a series.
type SnapshotKey struct {
	ID      string
	Release int
}

// Store defines the contract for raw series snapshot storage
type Store interface {
	// Put stores a snapshot of a series
	Put(ctx context.Context, key SnapshotKey, s *types.RawSeries) error

	// Get returns a stored snapshot; ok is false when there is none
	Get(ctx context.Context, key SnapshotKey) (s *types.RawSeries, ok bool, err error)

	// List summarizes every stored series
	List() []SeriesInfo

	// Stats reports what the store holds
	Stats() Stats

	// Close closes the storage
	Close() error
}

// Stats describes the contents of a store
type Stats struct {
	Series    int
	Snapshots int
	LSMBytes  int64
	VLogBytes int64
}

// Config holds storage configuration
type Config struct {
	Path             string
	RetentionDays    int
	CompressionLevel int
	CacheCapacity    int
	CacheTTL         time.Duration
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{
		Path:             "./data",
		RetentionDays:    1,
		CompressionLevel: 3,
		CacheCapacity:    1024,
		CacheTTL:         10 * time.Minute,
	}
}

// Retention is how long a current snapshot stays valid.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// badgerStore implements Store using BadgerDB
type badgerStore struct {
	cfg        *Config
	db         *badger.DB
	catalog    *Catalog
	compressor *Compressor
}

// NewStore opens (or creates) the snapshot store under cfg.Path
func NewStore(cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "badger"))
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	compressor, err := NewCompressor(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	s := &badgerStore{
		cfg:        cfg,
		db:         db,
		catalog:    NewCatalog(),
		compressor: compressor,
	}

	if err := s.loadCatalog(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	return s, nil
}

type snapshotPayload struct {
	Name             string
	Title            string
	Frequency        string
	Count            int
	First            int64
	Last             int64
	CompressedDates  []byte
	CompressedValues []byte
	StoredAt         time.Time
}

// Put implements Store.Put
func (s *badgerStore) Put(ctx context.Context, key SnapshotKey, series *types.RawSeries) error {
	if series.IsError {
		return fmt.Errorf("refusing to store failed series %s", key.ID)
	}
	if err := series.Validate(); err != nil {
		return err
	}

	compressedDates, err := s.compressor.CompressDates(series.Dates)
	if err != nil {
		return fmt.Errorf("failed to compress dates: %w", err)
	}

	compressedVals, err := s.compressor.CompressValues(series.Values)
	if err != nil {
		return fmt.Errorf("failed to compress values: %w", err)
	}

	payload := &snapshotPayload{
		Name:             series.Name,
		Title:            series.Title,
		Frequency:        series.Frequency,
		Count:            len(series.Dates),
		CompressedDates:  compressedDates,
		CompressedValues: compressedVals,
		StoredAt:         time.Now().UTC(),
	}
	if n := len(series.Dates); n > 0 {
		payload.First = series.Dates[0].Ordinal()
		payload.Last = series.Dates[n-1].Ordinal()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	entry := badger.NewEntry(generateKey(key), payloadBytes)
	if key.Release == Current {
		entry = entry.WithTTL(s.cfg.Retention())
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	s.catalog.Add(key, payloadRange(payload))
	return nil
}

// Get implements Store.Get
func (s *badgerStore) Get(ctx context.Context, key SnapshotKey) (*types.RawSeries, bool, error) {
	var payloadBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(generateKey(key))
		if err != nil {
			return err
		}
		payloadBytes, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		// Expired entries disappear from badger before they leave the catalog.
		s.catalog.Remove(key)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var payload snapshotPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	dates, err := s.compressor.DecompressDates(payload.CompressedDates, payload.Count)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decompress dates: %w", err)
	}

	values, err := s.compressor.DecompressValues(payload.CompressedValues, payload.Count)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decompress values: %w", err)
	}

	return &types.RawSeries{
		Name:      payload.Name,
		Title:     payload.Title,
		Frequency: payload.Frequency,
		Dates:     dates,
		Values:    values,
	}, true, nil
}

// List implements Store.List
func (s *badgerStore) List() []SeriesInfo {
	ids := s.catalog.IDs()
	out := make([]SeriesInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := s.catalog.Get(id); ok {
			out = append(out, info)
		}
	}
	return out
}

// Stats implements Store.Stats
func (s *badgerStore) Stats() Stats {
	lsm, vlog := s.db.Size()
	return Stats{
		Series:    s.catalog.SeriesCount(),
		Snapshots: s.catalog.SnapshotCount(),
		LSMBytes:  lsm,
		VLogBytes: vlog,
	}
}

// Close implements Store.Close
func (s *badgerStore) Close() error {
	if s.compressor != nil {
		s.compressor.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// loadCatalog rebuilds the catalog from the snapshots already on disk.
func (s *badgerStore) loadCatalog() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key, ok := parseKey(item.Key())
			if !ok {
				continue
			}

			var payload snapshotPayload
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &payload)
			}); err != nil {
				return fmt.Errorf("failed to decode snapshot %s/%d: %w", key.ID, key.Release, err)
			}

			s.catalog.Add(key, payloadRange(&payload))
		}
		return nil
	})
}

func payloadRange(p *snapshotPayload) DateRange {
	if p.Count == 0 {
		return DateRange{}
	}
	return DateRange{
		First: types.DateFromOrdinal(p.First),
		Last:  types.DateFromOrdinal(p.Last),
	}
}

// generateKey generates the storage key of a snapshot
func generateKey(key SnapshotKey) []byte {
	buf := new(bytes.Buffer)

	buf.Write(keyPrefix)
	buf.WriteString(key.ID)
	buf.WriteByte('/')

	// Release index is fixed-width so the id can be recovered from the key
	binary.Write(buf, binary.BigEndian, int64(key.Release))

	return buf.Bytes()
}

// parseKey reverses generateKey.
func parseKey(raw []byte) (SnapshotKey, bool) {
	if !bytes.HasPrefix(raw, keyPrefix) || len(raw) < len(keyPrefix)+9 {
		return SnapshotKey{}, false
	}

	body := raw[len(keyPrefix):]
	sep := len(body) - 9
	if body[sep] != '/' {
		return SnapshotKey{}, false
	}

	release := int64(binary.BigEndian.Uint64(body[sep+1:]))
	return SnapshotKey{ID: string(body[:sep]), Release: int(release)}, true
}
