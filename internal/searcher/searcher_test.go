package searcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/semcache/internal/embedder"
	"github.com/dshills/semcache/internal/index"
	"github.com/dshills/semcache/internal/metrics"
	"github.com/dshills/semcache/internal/querycache"
	"github.com/dshills/semcache/pkg/types"
)

// stubEmbedder returns fixed vectors per text and counts calls
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
	block   bool
	calls   atomic.Int32
}

func (s *stubEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", types.ErrModelInvocation, ctx.Err())
	}
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.vectors[req.Text]
	if !ok {
		v = []float32{0, 0, 1}
	}
	return &embedder.Embedding{Vector: v, Dimension: len(v)}, nil
}

func (s *stubEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *stubEmbedder) Dimension() int   { return 3 }
func (s *stubEmbedder) Provider() string { return "stub" }
func (s *stubEmbedder) Model() string    { return "stub" }
func (s *stubEmbedder) Close() error     { return nil }

// stubReranker scores documents from a fixed table
type stubReranker struct {
	scores map[string]float64
	err    error
	calls  atomic.Int32
	seen   []string
}

func (s *stubReranker) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	s.calls.Add(1)
	s.seen = documents
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(documents))
	for i, d := range documents {
		out[i] = s.scores[d]
	}
	return out, nil
}

func (s *stubReranker) Model() string { return "stub-reranker" }

// countingIndex wraps a VectorIndex and counts searches
type countingIndex struct {
	VectorIndex
	calls atomic.Int32
}

func (c *countingIndex) Search(query []float32, k int) ([]index.Hit, error) {
	c.calls.Add(1)
	return c.VectorIndex.Search(query, k)
}

// paddedIndex returns a fixed hit list, including padding IDs
type paddedIndex struct {
	hits []index.Hit
	err  error
}

func (p paddedIndex) Search(query []float32, k int) ([]index.Hit, error) {
	return p.hits, p.err
}

func (p paddedIndex) Len() int { return len(p.hits) }

// countingLexical wraps a LexicalIndex and counts scoring passes
type countingLexical struct {
	LexicalIndex
	calls atomic.Int32
}

func (c *countingLexical) Scores(query []string) []float64 {
	c.calls.Add(1)
	return c.LexicalIndex.Scores(query)
}

type shortLexical struct{}

func (shortLexical) Scores(query []string) []float64 { return []float64{1} }

func setupCorpus(t *testing.T) *Corpus {
	t.Helper()

	chunks := []types.Chunk{
		{ID: types.ChunkID("a.txt", 0), SourceFilename: "a.txt", Content: "cats are mammals"},
		{ID: types.ChunkID("b.txt", 0), SourceFilename: "b.txt", Content: "dogs are loyal"},
		{ID: types.ChunkID("c.txt", 0), SourceFilename: "c.txt", Content: "python is a programming language"},
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

	corpus, err := NewCorpus(chunks, vectors, 3)
	require.NoError(t, err)
	return corpus
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: map[string][]float32{
		"cats":    {2, 0, 0},
		"kittens": {0.95, 0.31, 0},
		"dogs":    {0, 1, 0},
	}}
}

func TestSearchHybrid(t *testing.T) {
	s := New(setupCorpus(t), newStubEmbedder())

	results, err := s.Search(context.Background(), types.SearchRequest{Query: "cats", K: 3, Alpha: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 3)

	top := results[0]
	assert.Equal(t, "a.txt_chunk_0", top.ChunkID)
	assert.Equal(t, "a.txt", top.SourceFilename)
	assert.InDelta(t, 1.0, top.FusedScore, 1e-6)
	assert.InDelta(t, 1.0, top.VectorScore, 1e-6)
	assert.InDelta(t, 1.0, top.LexicalScore, 1e-9)
	assert.Equal(t, 1.0, top.OverlapScore)
	assert.Equal(t, []string{"cats"}, top.MatchedTerms)
	assert.Equal(t, "Matched with 100% keyword overlap (cats). High semantic similarity (1.00).", top.Explanation)
	assert.Nil(t, top.RerankScore)

	// Remaining chunks tie at zero and fall back to chunk ID order
	assert.Equal(t, "b.txt_chunk_0", results[1].ChunkID)
	assert.Equal(t, "c.txt_chunk_0", results[2].ChunkID)
	assert.Equal(t, []string{}, results[1].MatchedTerms)
	assert.Equal(t, "Matched with 0% keyword overlap ().", results[1].Explanation)
}

func TestSearchAlphaExtremes(t *testing.T) {
	corpus := setupCorpus(t)

	// "dogs" embeds next to the dogs chunk; "cats" in the text matches chunk a lexically
	emb := newStubEmbedder()
	emb.vectors["dogs cats"] = []float32{0, 1, 0}
	s := New(corpus, emb)

	vectorOnly, err := s.Search(context.Background(), types.SearchRequest{Query: "dogs cats", K: 1, Alpha: 1})
	require.NoError(t, err)
	require.Len(t, vectorOnly, 1)
	assert.Equal(t, "b.txt_chunk_0", vectorOnly[0].ChunkID)
	assert.Equal(t, vectorOnly[0].VectorScore, vectorOnly[0].FusedScore)

	lexicalOnly, err := s.Search(context.Background(), types.SearchRequest{Query: "dogs cats", K: 3, Alpha: 0})
	require.NoError(t, err)
	for _, r := range lexicalOnly {
		assert.Equal(t, r.LexicalScore, r.FusedScore)
	}
}

func TestSearchTruncatesToK(t *testing.T) {
	s := New(setupCorpus(t), newStubEmbedder())

	results, err := s.Search(context.Background(), types.SearchRequest{Query: "cats", K: 1, Alpha: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.txt_chunk_0", results[0].ChunkID)

	results, err = s.Search(context.Background(), types.SearchRequest{Query: "cats", K: 10, Alpha: 0.5})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchOverlapPartial(t *testing.T) {
	s := New(setupCorpus(t), newStubEmbedder())

	results, err := s.Search(context.Background(), types.SearchRequest{Query: "Cats are  friendly", K: 1, Alpha: 0})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.txt_chunk_0", results[0].ChunkID)
	assert.Equal(t, []string{"are", "cats"}, results[0].MatchedTerms)
	assert.InDelta(t, 2.0/3.0, results[0].OverlapScore, 1e-12)
	assert.Equal(t, "Matched with 67% keyword overlap (are, cats).", results[0].Explanation)
}

func TestSearchInvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  types.SearchRequest
	}{
		{"zero k", types.SearchRequest{Query: "cats", K: 0, Alpha: 0.5}},
		{"negative k", types.SearchRequest{Query: "cats", K: -1, Alpha: 0.5}},
		{"alpha above one", types.SearchRequest{Query: "cats", K: 1, Alpha: 1.5}},
		{"negative alpha", types.SearchRequest{Query: "cats", K: 1, Alpha: -0.1}},
		{"blank query", types.SearchRequest{Query: "   ", K: 1, Alpha: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := newStubEmbedder()
			s := New(setupCorpus(t), emb)

			_, err := s.Search(context.Background(), tt.req)
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
			assert.Equal(t, int32(0), emb.calls.Load())
		})
	}
}

func TestSearchEmptyCorpus(t *testing.T) {
	emb := newStubEmbedder()
	s := New(nil, emb)

	results, err := s.Search(context.Background(), types.SearchRequest{Query: "cats", K: 5, Alpha: 0.5})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, int32(0), emb.calls.Load())

	// Validation still runs first
	_, err = s.Search(context.Background(), types.SearchRequest{Query: "cats", K: 0})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestSearchQueryCacheHit(t *testing.T) {
	corpus := setupCorpus(t)
	counting := &countingIndex{VectorIndex: corpus.Vectors}
	corpus.Vectors = counting
	lexical := &countingLexical{LexicalIndex: corpus.Lexical}
	corpus.Lexical = lexical

	cache := querycache.New(nil)
	m := metrics.New()
	s := New(corpus, newStubEmbedder(), WithQueryCache(cache), WithMetrics(m))
	req := types.SearchRequest{Query: "cats", K: 2, Alpha: 0.5}

	first, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), counting.calls.Load())
	assert.Equal(t, int32(1), lexical.calls.Load())
	assert.Equal(t, 1, cache.Len())

	second, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), counting.calls.Load(), "cache hit must not touch the vector index")
	assert.Equal(t, int32(1), lexical.calls.Load(), "cache hit must not touch the lexical index")

	// A paraphrase close enough in embedding space reuses the same results
	similar, err := s.Search(context.Background(), types.SearchRequest{Query: "kittens", K: 1, Alpha: 0.5})
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, first[0], similar[0])
	assert.Equal(t, int32(1), counting.calls.Load())
	assert.Equal(t, int32(1), lexical.calls.Load())

	// A distant query misses
	_, err = s.Search(context.Background(), types.SearchRequest{Query: "dogs", K: 2, Alpha: 0.5})
	require.NoError(t, err)
	assert.Equal(t, int32(2), counting.calls.Load())
	assert.Equal(t, int32(2), lexical.calls.Load())
	assert.Equal(t, 2, cache.Len())
}

func TestSearchCachedResultsAreCopies(t *testing.T) {
	cache := querycache.New(nil)
	s := New(setupCorpus(t), newStubEmbedder(), WithQueryCache(cache))
	req := types.SearchRequest{Query: "cats", K: 1, Alpha: 0.5}

	first, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	first[0].MatchedTerms[0] = "mutated"

	second, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"cats"}, second[0].MatchedTerms)
}

func TestSearchRerank(t *testing.T) {
	rr := &stubReranker{scores: map[string]float64{
		"cats are mammals":                 0.1,
		"dogs are loyal":                   0.9,
		"python is a programming language": 0.5,
	}}
	s := New(setupCorpus(t), newStubEmbedder(), WithReranker(rr))

	results, err := s.Search(context.Background(), types.SearchRequest{Query: "cats", K: 2, Alpha: 0.5, Rerank: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int32(1), rr.calls.Load())
	assert.Len(t, rr.seen, 3)

	assert.Equal(t, "b.txt_chunk_0", results[0].ChunkID)
	require.NotNil(t, results[0].RerankScore)
	assert.Equal(t, 0.9, *results[0].RerankScore)
	assert.Equal(t, 0.9, results[0].FusedScore)

	assert.Equal(t, "c.txt_chunk_0", results[1].ChunkID)
	require.NotNil(t, results[1].RerankScore)
	assert.Equal(t, 0.5, *results[1].RerankScore)
}

func TestSearchRerankDepth(t *testing.T) {
	rr := &stubReranker{scores: map[string]float64{}}
	s := New(setupCorpus(t), newStubEmbedder(), WithReranker(rr), WithRerankDepth(2))

	results, err := s.Search(context.Background(), types.SearchRequest{Query: "cats", K: 5, Alpha: 0.5, Rerank: true})
	require.NoError(t, err)
	assert.Len(t, rr.seen, 2)
	assert.Len(t, results, 2)
}

func TestSearchRerankSkippedWhenNotRequested(t *testing.T) {
	rr := &stubReranker{}
	s := New(setupCorpus(t), newStubEmbedder(), WithReranker(rr))

	results, err := s.Search(context.Background(), types.SearchRequest{Query: "cats", K: 2, Alpha: 0.5})
	require.NoError(t, err)
	assert.Equal(t, int32(0), rr.calls.Load())
	for _, r := range results {
		assert.Nil(t, r.RerankScore)
	}
}

func TestSearchFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T) *Searcher
		stage     string
		wantCause error
	}{
		{
			name: "embedding failure",
			setup: func(t *testing.T) *Searcher {
				emb := newStubEmbedder()
				emb.err = fmt.Errorf("%w: connection refused", types.ErrModelInvocation)
				return New(setupCorpus(t), emb)
			},
			stage:     StageEmbed,
			wantCause: types.ErrModelInvocation,
		},
		{
			name: "vector index failure",
			setup: func(t *testing.T) *Searcher {
				corpus := setupCorpus(t)
				corpus.Vectors = paddedIndex{err: types.ErrIndexUnavailable}
				return New(corpus, newStubEmbedder())
			},
			stage:     StageVector,
			wantCause: types.ErrIndexUnavailable,
		},
		{
			name: "lexical index out of sync",
			setup: func(t *testing.T) *Searcher {
				corpus := setupCorpus(t)
				corpus.Lexical = shortLexical{}
				return New(corpus, newStubEmbedder())
			},
			stage:     StageLexical,
			wantCause: types.ErrIndexUnavailable,
		},
		{
			name: "rerank failure",
			setup: func(t *testing.T) *Searcher {
				rr := &stubReranker{err: fmt.Errorf("%w: 503", types.ErrModelInvocation)}
				return New(setupCorpus(t), newStubEmbedder(), WithReranker(rr))
			},
			stage:     StageRerank,
			wantCause: types.ErrModelInvocation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.setup(t)

			results, err := s.Search(context.Background(), types.SearchRequest{Query: "cats", K: 2, Alpha: 0.5, Rerank: true})
			require.Error(t, err)
			assert.Nil(t, results)
			assert.ErrorIs(t, err, types.ErrRetrievalUnavailable)
			assert.ErrorIs(t, err, tt.wantCause)

			var re *types.RetrievalError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.stage, re.Stage)
		})
	}
}

func TestSearchFailureNotCached(t *testing.T) {
	cache := querycache.New(nil)
	rr := &stubReranker{err: types.ErrModelInvocation}
	s := New(setupCorpus(t), newStubEmbedder(), WithReranker(rr), WithQueryCache(cache))

	_, err := s.Search(context.Background(), types.SearchRequest{Query: "cats", K: 2, Alpha: 0.5, Rerank: true})
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestSearchDiscardsPaddingHits(t *testing.T) {
	corpus := setupCorpus(t)
	corpus.Vectors = paddedIndex{hits: []index.Hit{{ID: -1, Score: 0.99}, {ID: 1, Score: 0.4}, {ID: -1, Score: 0}}}
	s := New(corpus, newStubEmbedder())

	results, err := s.Search(context.Background(), types.SearchRequest{Query: "python", K: 5, Alpha: 1})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEmpty(t, r.ChunkID)
	}
	require.NotEmpty(t, results)
	assert.Equal(t, "b.txt_chunk_0", results[0].ChunkID)
	assert.InDelta(t, 0.4, results[0].VectorScore, 1e-12)
}

func TestSearchTimeout(t *testing.T) {
	emb := newStubEmbedder()
	emb.block = true
	s := New(setupCorpus(t), emb, WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := s.Search(context.Background(), types.SearchRequest{Query: "cats", K: 1, Alpha: 0.5})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, types.ErrRetrievalUnavailable)
}

func TestSearchLimiterHonoursContext(t *testing.T) {
	sem := semaphore.NewWeighted(1)
	require.True(t, sem.TryAcquire(1))
	defer sem.Release(1)

	emb := newStubEmbedder()
	s := New(setupCorpus(t), emb, WithModelLimiter(sem), WithTimeout(20*time.Millisecond))

	_, err := s.Search(context.Background(), types.SearchRequest{Query: "cats", K: 1, Alpha: 0.5})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(0), emb.calls.Load())
}

func TestSearchConcurrent(t *testing.T) {
	cache := querycache.New(nil)
	s := New(setupCorpus(t), newStubEmbedder(), WithQueryCache(cache), WithModelLimiter(semaphore.NewWeighted(2)))

	done := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func(n int) {
			query := "cats"
			if n%2 == 0 {
				query = "dogs"
			}
			_, err := s.Search(context.Background(), types.SearchRequest{Query: query, K: 2, Alpha: 0.5})
			done <- err
		}(i)
	}
	for i := 0; i < 16; i++ {
		assert.NoError(t, <-done)
	}
}

func TestSetCorpus(t *testing.T) {
	s := New(nil, newStubEmbedder())
	assert.Equal(t, 0, s.Corpus().Len())

	s.SetCorpus(setupCorpus(t))
	assert.Equal(t, 3, s.Corpus().Len())

	results, err := s.Search(context.Background(), types.SearchRequest{Query: "dogs", K: 1, Alpha: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.txt_chunk_0", results[0].ChunkID)
}

func TestNewCorpusErrors(t *testing.T) {
	chunks := []types.Chunk{{ID: "a_chunk_0", Content: "x"}}

	_, err := NewCorpus(chunks, nil, 3)
	assert.ErrorIs(t, err, types.ErrIndexUnavailable)

	_, err = NewCorpus(chunks, [][]float32{nil}, 3)
	assert.ErrorIs(t, err, types.ErrIndexUnavailable)

	_, err = NewCorpus(chunks, [][]float32{{1, 2}}, 3)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
