package querycache

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/rs/zerolog"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/dshills/semcache/pkg/types"
)

const (
	DefaultThreshold = 0.85 // Minimum cosine similarity for a hit
	DefaultCapacity  = 1000 // Entries kept before the oldest is evicted
)

// Entry is one recorded query and the results it produced
type Entry struct {
	Query   string
	Vector  []float32
	Results []types.RankedResult
}

// Store persists the full entry list in insertion order
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
}

// ErrStoreMissing is returned by a Store that has never been saved
var ErrStoreMissing = errors.New("query cache store does not exist")

// LoadStatus reports how Load populated the cache
type LoadStatus int

const (
	LoadFresh LoadStatus = iota
	LoadRestored
	LoadRecovered
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

// Option configures a Cache
type Option func(*Cache)

// WithThreshold sets the similarity required for a hit
func WithThreshold(threshold float64) Option {
	return func(c *Cache) { c.threshold = threshold }
}

// WithCapacity bounds the number of entries. Values < 1 disable the bound.
func WithCapacity(capacity int) Option {
	return func(c *Cache) { c.capacity = capacity }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) { c.logger = logger.With().Str("component", "querycache").Logger() }
}

// Cache serves results recorded for earlier queries whose embedding is close to the current one
type Cache struct {
	mu      sync.RWMutex
	entries *orderedmap.OrderedMap[uint64, Entry]
	nextSeq uint64

	threshold float64
	capacity  int

	saveMu sync.Mutex // Serializes writes to the store
	store  Store
	logger zerolog.Logger
}

// New creates an empty cache. A nil store keeps entries in memory only.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		entries:   orderedmap.New[uint64, Entry](),
		threshold: DefaultThreshold,
		capacity:  DefaultCapacity,
		store:     store,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the configured hit threshold
func (c *Cache) Threshold() float64 {
	return c.threshold
}

// Find returns a copy of the results of the most similar recorded query when
// its similarity reaches the threshold. The best similarity is returned in
// either case. On equal similarity the earliest recorded entry wins.
func (c *Cache) Find(vector []float32) ([]types.RankedResult, float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		best  *Entry
		score float64
	)
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		sim := CosineSimilarity(vector, pair.Value.Vector)
		if best == nil || sim > score {
			entry := pair.Value
			best, score = &entry, sim
		}
	}

	if best == nil || score < c.threshold {
		return nil, score, false
	}
	return types.CloneResults(best.Results), score, true
}

// Record appends an entry, evicts the oldest entries beyond capacity and
// persists the cache. The entry stays in memory when persisting fails.
func (c *Cache) Record(ctx context.Context, query string, vector []float32, results []types.RankedResult) error {
	entry := Entry{
		Query:   query,
		Vector:  append([]float32(nil), vector...),
		Results: types.CloneResults(results),
	}
	if entry.Results == nil {
		entry.Results = []types.RankedResult{}
	}

	c.mu.Lock()
	c.entries.Set(c.nextSeq, entry)
	c.nextSeq++
	for c.capacity > 0 && c.entries.Len() > c.capacity {
		c.entries.Delete(c.entries.Oldest().Key)
	}
	c.mu.Unlock()

	return c.save(ctx)
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

// Reset drops every entry and persists the empty cache
func (c *Cache) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.entries = orderedmap.New[uint64, Entry]()
	c.mu.Unlock()

	return c.save(ctx)
}

// Load replaces the in-memory entries with the persisted ones. A corrupt or
// unreadable store is logged and leaves the cache empty.
func (c *Cache) Load(ctx context.Context) LoadStatus {
	if c.store == nil {
		return LoadFresh
	}

	c.saveMu.Lock()
	loaded, err := c.store.Load(ctx)
	c.saveMu.Unlock()

	status := LoadRestored
	switch {
	case errors.Is(err, ErrStoreMissing):
		loaded, status = nil, LoadFresh
	case err != nil:
		c.logger.Warn().Err(err).Msg("query cache unreadable, starting empty")
		loaded, status = nil, LoadRecovered
	}

	// Oldest entries go first so capacity keeps the newest
	if c.capacity > 0 && len(loaded) > c.capacity {
		loaded = loaded[len(loaded)-c.capacity:]
	}

	c.mu.Lock()
	c.entries = orderedmap.New[uint64, Entry]()
	for _, entry := range loaded {
		c.entries.Set(c.nextSeq, entry)
		c.nextSeq++
	}
	c.mu.Unlock()

	c.logger.Info().Stringer("status", status).Int("entries", len(loaded)).Msg("query cache loaded")
	return status
}

// save writes the state current at the time saveMu is acquired, so the last
// writer always persists the newest entries.
func (c *Cache) save(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	snapshot := make([]Entry, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		snapshot = append(snapshot, pair.Value)
	}
	c.mu.RUnlock()

	return c.store.Save(ctx, snapshot)
}

// CosineSimilarity computes dot(a, b) / (|a| * |b|) in float64. A zero-norm
// vector or a length mismatch yields 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
