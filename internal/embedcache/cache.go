package embedcache

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/semcache/pkg/types"
)

// Entry is a cached embedding together with the fingerprint of the text it was computed from
type Entry struct {
	Fingerprint Fingerprint
	Vector      []float32
}

// Store persists a full cache snapshot. Save must replace the previous snapshot
// atomically; Load returns an error wrapping types.ErrCacheCorruption when the
// stored data cannot be decoded and ErrStoreMissing when nothing was saved yet.
type Store interface {
	Load(ctx context.Context) (map[string]Entry, error)
	Save(ctx context.Context, entries map[string]Entry) error
}

// ErrStoreMissing is returned by a Store that has never been saved
var ErrStoreMissing = errors.New("cache store does not exist")

// LoadStatus reports how a Load call populated the cache
type LoadStatus int

const (
	LoadFresh     LoadStatus = iota // No persisted store; cache starts empty
	LoadRestored                    // Entries restored from the store
	LoadRecovered                   // Store was corrupt or unreadable; cache reset to empty
)

func (s LoadStatus) String() string {
	switch s {
	case LoadFresh:
		return "fresh"
	case LoadRestored:
		return "restored"
	case LoadRecovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// Cache maps chunk IDs to embeddings, valid only while the chunk content is unchanged
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry

	saveMu sync.Mutex // Serializes writes to the store
	store  Store
	logger zerolog.Logger
}

// New creates an empty cache backed by store. A nil store keeps the cache in memory only.
func New(store Store, logger zerolog.Logger) *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		store:   store,
		logger:  logger.With().Str("component", "embedcache").Logger(),
	}
}

// Lookup returns a copy of the cached vector for chunkID when the stored
// fingerprint matches the fingerprint of content.
func (c *Cache) Lookup(chunkID, content string) ([]float32, bool) {
	fp := ComputeFingerprint(content)

	c.mu.RLock()
	entry, ok := c.entries[chunkID]
	c.mu.RUnlock()

	if !ok || entry.Fingerprint != fp {
		return nil, false
	}
	return copyVector(entry.Vector), true
}

// Insert stores vector for chunkID, replacing any previous entry
func (c *Cache) Insert(chunkID, content string, vector []float32) {
	entry := Entry{
		Fingerprint: ComputeFingerprint(content),
		Vector:      copyVector(vector),
	}

	c.mu.Lock()
	c.entries[chunkID] = entry
	c.mu.Unlock()
}

// Partition splits chunks into cached vectors and the indices that still need embedding.
// vectors is aligned with chunks; entries for missing chunks are nil.
func (c *Cache) Partition(chunks []types.Chunk) (vectors [][]float32, missing []int) {
	vectors = make([][]float32, len(chunks))
	for i := range chunks {
		if v, ok := c.Lookup(chunks[i].ID, chunks[i].Content); ok {
			vectors[i] = v
			continue
		}
		missing = append(missing, i)
	}
	return vectors, missing
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Persist writes the contents current when the store becomes free, so the
// last persister always saves the newest entries.
func (c *Cache) Persist(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	snapshot := make(map[string]Entry, len(c.entries))
	for id, entry := range c.entries {
		snapshot[id] = entry // Vectors are never mutated in place
	}
	c.mu.RUnlock()

	if err := c.store.Save(ctx, snapshot); err != nil {
		return err
	}
	c.logger.Debug().Int("entries", len(snapshot)).Msg("embedding cache persisted")
	return nil
}

// Load replaces the in-memory contents with the persisted store. It never
// fails: a corrupt or unreadable store leaves the cache empty and is logged.
func (c *Cache) Load(ctx context.Context) LoadStatus {
	if c.store == nil {
		return LoadFresh
	}

	c.saveMu.Lock()
	entries, err := c.store.Load(ctx)
	c.saveMu.Unlock()

	status := LoadRestored
	switch {
	case errors.Is(err, ErrStoreMissing):
		entries, status = nil, LoadFresh
	case err != nil:
		c.logger.Warn().Err(err).Msg("embedding cache unreadable, starting empty")
		entries, status = nil, LoadRecovered
	}

	if entries == nil {
		entries = make(map[string]Entry)
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	c.logger.Info().Stringer("status", status).Int("entries", len(entries)).Msg("embedding cache loaded")
	return status
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
