package embedcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semcache/internal/storage"
	"github.com/dshills/semcache/pkg/types"
)

func TestFingerprint(t *testing.T) {
	a := ComputeFingerprint("hello world")
	b := ComputeFingerprint("hello world")
	c := ComputeFingerprint("hello world!")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", a.String())

	parsed, err := ParseFingerprint(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	_, err = ParseFingerprint("zz")
	assert.Error(t, err)
	_, err = ParseFingerprint("abcd")
	assert.Error(t, err)
}

func TestLookupRoundTrip(t *testing.T) {
	cache := New(nil, zerolog.Nop())

	cache.Insert("doc_chunk_0", "cats are mammals", []float32{1, 2, 3})

	vec, ok := cache.Lookup("doc_chunk_0", "cats are mammals")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	assert.Equal(t, 1, cache.Len())
}

func TestLookupStaleContent(t *testing.T) {
	cache := New(nil, zerolog.Nop())
	cache.Insert("doc_chunk_0", "cats are mammals", []float32{1, 2, 3})

	_, ok := cache.Lookup("doc_chunk_0", "cats are reptiles")
	assert.False(t, ok)

	_, ok = cache.Lookup("unknown", "cats are mammals")
	assert.False(t, ok)
}

func TestInsertOverwrites(t *testing.T) {
	cache := New(nil, zerolog.Nop())
	cache.Insert("a", "old", []float32{1})
	cache.Insert("a", "new", []float32{2})

	_, ok := cache.Lookup("a", "old")
	assert.False(t, ok)

	vec, ok := cache.Lookup("a", "new")
	require.True(t, ok)
	assert.Equal(t, []float32{2}, vec)
	assert.Equal(t, 1, cache.Len())
}

func TestLookupReturnsCopy(t *testing.T) {
	cache := New(nil, zerolog.Nop())
	input := []float32{1, 2}
	cache.Insert("a", "text", input)
	input[0] = 99

	vec, _ := cache.Lookup("a", "text")
	vec[1] = 42

	again, _ := cache.Lookup("a", "text")
	assert.Equal(t, []float32{1, 2}, again)
}

func TestPartition(t *testing.T) {
	cache := New(nil, zerolog.Nop())
	cache.Insert("a_chunk_0", "alpha", []float32{1})
	cache.Insert("a_chunk_1", "beta", []float32{2})

	chunks := []types.Chunk{
		{ID: "a_chunk_0", Content: "alpha"},
		{ID: "a_chunk_1", Content: "beta changed"},
		{ID: "a_chunk_2", Content: "gamma"},
	}

	vectors, missing := cache.Partition(chunks)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1}, vectors[0])
	assert.Nil(t, vectors[1])
	assert.Nil(t, vectors[2])
	assert.Equal(t, []int{1, 2}, missing)
}

func TestConcurrentAccess(t *testing.T) {
	cache := New(nil, zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := types.ChunkID("f", n)
			for j := 0; j < 100; j++ {
				cache.Insert(id, "content", []float32{float32(j)})
				_, _ = cache.Lookup(id, "content")
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, cache.Len())
}

func TestFileStorePersistAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache", "embeddings_cache.json")

	cache := New(NewFileStore(path), zerolog.Nop())
	assert.Equal(t, LoadFresh, cache.Load(ctx))

	cache.Insert("a_chunk_0", "alpha", []float32{0.5, -0.25})
	cache.Insert("a_chunk_1", "beta", []float32{1, 0})
	require.NoError(t, cache.Persist(ctx))

	restored := New(NewFileStore(path), zerolog.Nop())
	assert.Equal(t, LoadRestored, restored.Load(ctx))
	assert.Equal(t, 2, restored.Len())

	vec, ok := restored.Lookup("a_chunk_0", "alpha")
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, -0.25}, vec)

	_, ok = restored.Lookup("a_chunk_1", "beta v2")
	assert.False(t, ok)
}

func TestFileStoreFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "embeddings_cache.json")

	store := NewFileStore(path)
	require.NoError(t, store.Save(ctx, map[string]Entry{
		"x": {Fingerprint: ComputeFingerprint("hello world"), Vector: []float32{1}},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":{"hash":"b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9","embedding":[1]}}`, string(data))
}

func TestLoadCorruptStoreRecovers(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", "{not json"},
		{"bad hash", `{"x":{"hash":"nothex","embedding":[1]}}`},
		{"wrong shape", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "embeddings_cache.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			cache := New(NewFileStore(path), zerolog.Nop())
			cache.Insert("stale", "text", []float32{1})

			assert.Equal(t, LoadRecovered, cache.Load(ctx))
			assert.Equal(t, 0, cache.Len())

			_, err := NewFileStore(path).Load(ctx)
			assert.ErrorIs(t, err, types.ErrCacheCorruption)
		})
	}
}

type failingStore struct{}

func (failingStore) Load(ctx context.Context) (map[string]Entry, error) {
	return nil, errors.New("permission denied")
}

func (failingStore) Save(ctx context.Context, entries map[string]Entry) error {
	return errors.New("disk full")
}

func TestUnreadableStoreRecovers(t *testing.T) {
	cache := New(failingStore{}, zerolog.Nop())
	assert.Equal(t, LoadRecovered, cache.Load(context.Background()))
	assert.Error(t, cache.Persist(context.Background()))
}

// gatedStore blocks the first Save until released and records every snapshot
type gatedStore struct {
	started  chan struct{}
	release  chan struct{}
	mu       sync.Mutex
	saves    []map[string]Entry
	gateOnce sync.Once
}

func (s *gatedStore) Load(ctx context.Context) (map[string]Entry, error) {
	return nil, ErrStoreMissing
}

func (s *gatedStore) Save(ctx context.Context, entries map[string]Entry) error {
	s.gateOnce.Do(func() {
		close(s.started)
		<-s.release
	})
	s.mu.Lock()
	s.saves = append(s.saves, entries)
	s.mu.Unlock()
	return nil
}

func TestPersistLastWriterSavesNewest(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{started: make(chan struct{}), release: make(chan struct{})}
	cache := New(store, zerolog.Nop())
	cache.Insert("a", "alpha", []float32{1})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, cache.Persist(ctx))
	}()
	<-store.started

	go func() {
		defer wg.Done()
		assert.NoError(t, cache.Persist(ctx))
	}()
	time.Sleep(20 * time.Millisecond)

	// Inserted while the second persist waits for the store
	cache.Insert("b", "beta", []float32{2})
	close(store.release)
	wg.Wait()

	require.Len(t, store.saves, 2)
	assert.Len(t, store.saves[0], 1)
	assert.Len(t, store.saves[1], 2)
	assert.Contains(t, store.saves[1], "b")
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	cache := New(NewSQLiteStore(db), zerolog.Nop())
	assert.Equal(t, LoadFresh, cache.Load(ctx))

	cache.Insert("a", "alpha", []float32{1, 2})
	require.NoError(t, cache.Persist(ctx))

	restored := New(NewSQLiteStore(db), zerolog.Nop())
	assert.Equal(t, LoadRestored, restored.Load(ctx))
	vec, ok := restored.Lookup("a", "alpha")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, vec)
}

func TestBadgerStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	cache := New(store, zerolog.Nop())
	assert.Equal(t, LoadFresh, cache.Load(ctx))

	cache.Insert("a", "alpha", []float32{1, 2})
	cache.Insert("b", "beta", []float32{3})
	require.NoError(t, cache.Persist(ctx))

	// Keys missing from the next snapshot are removed
	require.NoError(t, store.Save(ctx, map[string]Entry{
		"a": {Fingerprint: ComputeFingerprint("alpha"), Vector: []float32{1, 2}},
	}))

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []float32{1, 2}, entries["a"].Vector)
}

func TestLoadStatusString(t *testing.T) {
	assert.Equal(t, "fresh", LoadFresh.String())
	assert.Equal(t, "restored", LoadRestored.String())
	assert.Equal(t, "recovered", LoadRecovered.String())
}
