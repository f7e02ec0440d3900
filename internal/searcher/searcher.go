package searcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/semcache/internal/embedder"
	"github.com/dshills/semcache/internal/index"
	"github.com/dshills/semcache/internal/metrics"
	"github.com/dshills/semcache/internal/querycache"
	"github.com/dshills/semcache/internal/reranker"
	"github.com/dshills/semcache/pkg/types"
)

// Defaults
const (
	DefaultRerankDepth = 20
	DefaultTimeout     = 30 * time.Second
)

// Pipeline stages reported in RetrievalError
const (
	StageEmbed   = "embed"
	StageVector  = "vector"
	StageLexical = "lexical"
	StageRerank  = "rerank"
)

// Option configures a Searcher
type Option func(*Searcher)

// WithReranker sets the cross-encoder used when a request asks for reranking
func WithReranker(r reranker.Reranker) Option {
	return func(s *Searcher) { s.reranker = r }
}

// WithQueryCache enables the semantic query cache
func WithQueryCache(c *querycache.Cache) Option {
	return func(s *Searcher) { s.cache = c }
}

// WithModelLimiter bounds concurrent embedding and rerank calls
func WithModelLimiter(sem *semaphore.Weighted) Option {
	return func(s *Searcher) { s.limiter = sem }
}

// WithTimeout sets the per-search deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(s *Searcher) { s.timeout = d }
}

// WithRerankDepth sets how many fused candidates are rescored
func WithRerankDepth(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.rerankDepth = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Searcher) { s.logger = logger.With().Str("component", "searcher").Logger() }
}

// WithMetrics records search outcomes and model latency
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Searcher) { s.metrics = m }
}

// Searcher runs hybrid retrieval over the current corpus snapshot
type Searcher struct {
	corpus atomic.Pointer[Corpus]

	embedder embedder.Embedder
	reranker reranker.Reranker
	cache    *querycache.Cache
	limiter  *semaphore.Weighted

	timeout     time.Duration
	rerankDepth int

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a Searcher over corpus, which may be nil until the first ingest
func New(corpus *Corpus, emb embedder.Embedder, opts ...Option) *Searcher {
	s := &Searcher{
		embedder:    emb,
		timeout:     DefaultTimeout,
		rerankDepth: DefaultRerankDepth,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.corpus.Store(corpus)
	return s
}

// Corpus returns the snapshot searches currently run against
func (s *Searcher) Corpus() *Corpus {
	return s.corpus.Load()
}

// SetCorpus swaps the snapshot. In-flight searches finish on the old one.
func (s *Searcher) SetCorpus(c *Corpus) {
	s.corpus.Store(c)
}

// Search returns at most req.K results ranked by fused (or rerank) score.
// A model or index failure yields a *types.RetrievalError and no results.
func (s *Searcher) Search(ctx context.Context, req types.SearchRequest) ([]types.RankedResult, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		s.metrics.ObserveSearch(metrics.OutcomeInvalid, time.Since(start))
		return nil, err
	}

	corpus := s.corpus.Load()
	if corpus.Empty() {
		s.metrics.ObserveSearch(metrics.OutcomeEmpty, time.Since(start))
		return []types.RankedResult{}, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	results, outcome, err := s.search(ctx, corpus, req)
	if err != nil {
		s.metrics.ObserveSearch(metrics.OutcomeError, time.Since(start))
		s.logger.Warn().Err(err).Str("query", req.Query).Msg("search failed")
		return nil, err
	}

	s.metrics.ObserveSearch(outcome, time.Since(start))
	s.logger.Debug().
		Str("query", req.Query).
		Str("outcome", outcome).
		Int("results", len(results)).
		Dur("duration", time.Since(start)).
		Msg("search completed")
	return results, nil
}

func (s *Searcher) search(ctx context.Context, corpus *Corpus, req types.SearchRequest) ([]types.RankedResult, string, error) {
	query, err := s.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, "", err
	}

	if s.cache != nil {
		cached, sim, ok := s.cache.Find(query)
		s.metrics.ObserveCacheSimilarity(sim)
		if ok {
			s.logger.Info().Float64("similarity", sim).Str("query", req.Query).Msg("query cache hit")
			if len(cached) > req.K {
				cached = cached[:req.K]
			}
			return cached, metrics.OutcomeHit, nil
		}
	}

	rerank := req.Rerank && s.reranker != nil
	candidates := max(2*req.K, 1)
	if rerank {
		candidates = s.rerankDepth
	}

	vector, lexical, err := s.candidates(ctx, corpus, query, req.Query, candidates)
	if err != nil {
		return nil, "", err
	}

	results := fuse(corpus, req.Query, req.Alpha, vector, lexical)

	if rerank && len(results) > 0 {
		results, err = s.rerank(ctx, req.Query, results)
		if err != nil {
			return nil, "", err
		}
	}

	if len(results) > req.K {
		results = results[:req.K]
	}

	if s.cache != nil {
		if err := s.cache.Record(ctx, req.Query, query, results); err != nil {
			s.logger.Warn().Err(err).Msg("failed to persist query cache")
		}
		s.metrics.SetQueryCacheEntries(s.cache.Len())
	}

	return results, metrics.OutcomeMiss, nil
}

// embedQuery embeds and L2-normalizes the query under the model limiter
func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, stageError(ctx, StageEmbed, err)
	}
	defer release()

	start := time.Now()
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	s.metrics.ObserveModel(metrics.KindEmbed, time.Since(start))
	if err != nil {
		return nil, stageError(ctx, StageEmbed, err)
	}
	return index.Normalize(emb.Vector), nil
}

// candidates runs the vector and lexical searches concurrently. Both maps
// are keyed by corpus position; lexical scores are divided by the corpus-wide
// maximum.
func (s *Searcher) candidates(ctx context.Context, corpus *Corpus, vec []float32, query string, n int) (map[int]float64, map[int]float64, error) {
	g, gctx := errgroup.WithContext(ctx)

	vector := make(map[int]float64, n)
	g.Go(func() error {
		hits, err := corpus.Vectors.Search(vec, n)
		if err != nil {
			return stageError(gctx, StageVector, err)
		}
		for _, hit := range hits {
			if hit.ID < 0 || hit.ID >= len(corpus.Chunks) {
				continue
			}
			vector[hit.ID] = hit.Score
		}
		return nil
	})

	lexical := make(map[int]float64, n)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return stageError(gctx, StageLexical, err)
		}
		scores := corpus.Lexical.Scores(index.Tokenize(query))
		if len(scores) != len(corpus.Chunks) {
			return stageError(gctx, StageLexical, fmt.Errorf("%w: lexical index has %d documents, corpus has %d",
				types.ErrIndexUnavailable, len(scores), len(corpus.Chunks)))
		}
		divisor := index.MaxScore(scores)
		for _, id := range index.TopN(scores, n) {
			lexical[id] = scores[id] / divisor
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vector, lexical, nil
}

// rerank rescores the top candidates and returns them re-sorted. Candidates
// beyond the rerank depth are dropped.
func (s *Searcher) rerank(ctx context.Context, query string, results []types.RankedResult) ([]types.RankedResult, error) {
	if len(results) > s.rerankDepth {
		results = results[:s.rerankDepth]
	}

	docs := make([]string, len(results))
	for i := range results {
		docs[i] = results[i].Content
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, stageError(ctx, StageRerank, err)
	}
	start := time.Now()
	scores, err := s.reranker.Score(ctx, query, docs)
	s.metrics.ObserveModel(metrics.KindRerank, time.Since(start))
	release()
	if err != nil {
		return nil, stageError(ctx, StageRerank, err)
	}
	if len(scores) != len(results) {
		return nil, stageError(ctx, StageRerank, fmt.Errorf("%w: got %d scores for %d candidates",
			types.ErrModelInvocation, len(scores), len(results)))
	}

	for i := range results {
		score := scores[i]
		results[i].FusedScore = score
		results[i].RerankScore = &score
	}
	sortResults(results)
	return results, nil
}

func (s *Searcher) acquire(ctx context.Context) (func(), error) {
	if s.limiter == nil {
		return func() {}, ctx.Err()
	}
	if err := s.limiter.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { s.limiter.Release(1) }, nil
}

// stageError wraps err as a RetrievalError, attaching the context error when
// the deadline or cancellation caused the failure
func stageError(ctx context.Context, stage string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", err, ctxErr)
	}
	return types.NewRetrievalError(stage, err)
}
