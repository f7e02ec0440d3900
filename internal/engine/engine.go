package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/semcache/internal/chunker"
	"github.com/dshills/semcache/internal/config"
	"github.com/dshills/semcache/internal/embedcache"
	"github.com/dshills/semcache/internal/embedder"
	"github.com/dshills/semcache/internal/indexer"
	"github.com/dshills/semcache/internal/metrics"
	"github.com/dshills/semcache/internal/querycache"
	"github.com/dshills/semcache/internal/reranker"
	"github.com/dshills/semcache/internal/retry"
	"github.com/dshills/semcache/internal/searcher"
	"github.com/dshills/semcache/internal/storage"
	"github.com/dshills/semcache/pkg/types"
)

// Health status values
const (
	StatusOK       = "healthy"
	StatusEmpty    = "empty"
	StatusDegraded = "degraded"
)

// Option overrides a component built from configuration
type Option func(*Engine)

// WithLogger sets the logger shared by every component
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEmbedder replaces the configured embedding provider
func WithEmbedder(emb embedder.Embedder) Option {
	return func(e *Engine) { e.embedder = emb }
}

// WithReranker replaces the configured rerank provider
func WithReranker(r reranker.Reranker) Option {
	return func(e *Engine) { e.reranker = r }
}

// Engine owns every long-lived component: storage, models, caches, indices
// and the searcher. It is built once per process and shared by the HTTP,
// MCP and CLI surfaces.
type Engine struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics

	storage    storage.Storage
	embedder   embedder.Embedder
	reranker   reranker.Reranker
	embedCache *embedcache.Cache
	queryCache *querycache.Cache
	closers    []io.Closer

	indexer  *indexer.Indexer
	searcher *searcher.Searcher

	mu      sync.Mutex
	loadErr error // Last snapshot load failure, reported by Health
}

// New builds an engine from cfg, loads both caches and the stored corpus
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.init(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) init(ctx context.Context) error {
	cfg := e.cfg

	if err := os.MkdirAll(cfg.CachePath(), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	dbPath := cfg.DatabasePath()
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	e.storage = store

	policy := retry.DefaultConfig().WithAttempts(cfg.ModelMaxRetries)

	if e.embedder == nil {
		e.embedder, err = embedder.New(embedderConfig(cfg, policy, e.logger))
		if err != nil {
			return fmt.Errorf("failed to initialize embedder: %w", err)
		}
	}
	if e.embedder.Dimension() != cfg.EmbeddingDimension {
		return fmt.Errorf("%w: embedder produces %d dimensions, embedding_dimension is %d",
			types.ErrConfiguration, e.embedder.Dimension(), cfg.EmbeddingDimension)
	}

	if e.reranker == nil {
		e.reranker, err = reranker.New(reranker.Config{
			Provider: cfg.RerankProvider,
			Model:    cfg.RerankModel,
			APIKey:   cfg.JinaKey,
			Endpoint: cfg.RerankEndpoint,
			Retry:    policy,
			Logger:   e.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize reranker: %w", err)
		}
	}

	cacheStore, err := e.embedCacheStore()
	if err != nil {
		return err
	}
	e.embedCache = embedcache.New(cacheStore, e.logger)
	e.embedCache.Load(ctx)

	e.queryCache = querycache.New(querycache.NewFileStore(cfg.QueryCacheFile()),
		querycache.WithThreshold(cfg.QueryCacheThreshold),
		querycache.WithCapacity(cfg.QueryCacheCapacity),
		querycache.WithLogger(e.logger),
	)
	e.queryCache.Load(ctx)
	e.metrics.SetQueryCacheEntries(e.queryCache.Len())

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return err
	}
	e.indexer = indexer.New(e.storage, e.embedder, e.embedCache, ch, &indexer.Config{
		Workers:   cfg.IngestWorkers,
		BatchSize: cfg.BatchSize,
		Logger:    e.logger,
	})

	e.searcher = searcher.New(nil, e.embedder,
		searcher.WithReranker(e.reranker),
		searcher.WithQueryCache(e.queryCache),
		searcher.WithModelLimiter(semaphore.NewWeighted(int64(cfg.ModelWorkers))),
		searcher.WithTimeout(cfg.RequestTimeout),
		searcher.WithRerankDepth(cfg.RerankDepth),
		searcher.WithLogger(e.logger),
		searcher.WithMetrics(e.metrics),
	)

	if err := e.Reload(ctx); err != nil {
		// A stale snapshot (e.g. built with another dimension) must not
		// block startup; a re-ingest replaces it.
		e.logger.Error().Err(err).Msg("stored corpus unusable, re-ingest required")
	}
	return nil
}

func embedderConfig(cfg *config.Config, policy retry.Config, logger zerolog.Logger) embedder.Config {
	ec := embedder.Config{
		Provider:  cfg.EmbeddingProvider,
		Model:     cfg.EmbeddingModel,
		BaseURL:   cfg.EmbeddingBaseURL,
		Dimension: cfg.EmbeddingDimension,
		MemoSize:  cfg.MemoSize,
		Retry:     policy,
		Logger:    logger,
	}
	switch ec.Provider {
	case embedder.ProviderOpenAI:
		ec.APIKey = cfg.OpenAIKey
	case embedder.ProviderJina:
		ec.APIKey = cfg.JinaKey
	case embedder.ProviderOllama:
		if cfg.OllamaHost != "" {
			ec.BaseURL = cfg.OllamaHost
		}
	}
	return ec
}

func (e *Engine) embedCacheStore() (embedcache.Store, error) {
	switch e.cfg.CacheBackend {
	case embedcache.BackendSQLite:
		return embedcache.NewSQLiteStore(e.storage), nil
	case embedcache.BackendBadger:
		bs, err := embedcache.NewBadgerStore(e.cfg.BadgerDir())
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, bs)
		return bs, nil
	default:
		return embedcache.NewFileStore(e.cfg.EmbeddingCacheFile()), nil
	}
}

// Reload rebuilds the indices from the stored corpus and swaps them in
func (e *Engine) Reload(ctx context.Context) error {
	docs, err := e.storage.LoadCorpus(ctx)
	if err != nil {
		e.setLoadErr(err)
		return fmt.Errorf("load corpus: %w", err)
	}

	if len(docs) == 0 {
		e.searcher.SetCorpus(nil)
		e.setLoadErr(nil)
		e.metrics.SetDocumentsIndexed(0)
		return nil
	}

	chunks := make([]types.Chunk, len(docs))
	vectors := make([][]float32, len(docs))
	for i, doc := range docs {
		chunks[i] = doc.Chunk
		vectors[i] = doc.Vector
	}

	corpus, err := searcher.NewCorpus(chunks, vectors, e.cfg.EmbeddingDimension)
	if err != nil {
		e.setLoadErr(err)
		return fmt.Errorf("build indices: %w", err)
	}

	e.searcher.SetCorpus(corpus)
	e.setLoadErr(nil)
	e.metrics.SetDocumentsIndexed(corpus.Len())
	e.logger.Info().Int("chunks", corpus.Len()).Msg("corpus snapshot loaded")
	return nil
}

func (e *Engine) setLoadErr(err error) {
	e.mu.Lock()
	e.loadErr = err
	e.mu.Unlock()
}

func (e *Engine) lastLoadErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadErr
}

// Search runs one retrieval request
func (e *Engine) Search(ctx context.Context, req types.SearchRequest) ([]types.RankedResult, error) {
	return e.searcher.Search(ctx, req)
}

// Embed returns the embedding of text as the searcher would compute it
func (e *Engine) Embed(ctx context.Context, text string) (*embedder.Embedding, error) {
	return e.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
}

// Ingest indexes every text file in dir (the configured raw directory when
// empty), swaps in the new snapshot and clears the query cache.
func (e *Engine) Ingest(ctx context.Context, dir string) (*indexer.Statistics, error) {
	if dir == "" {
		dir = e.cfg.RawPath()
	}
	stats, err := e.indexer.Ingest(ctx, dir)
	return stats, e.afterIngest(ctx, err)
}

// IngestChunks indexes pre-built chunks, replacing the corpus
func (e *Engine) IngestChunks(ctx context.Context, chunks []types.Chunk) (*indexer.Statistics, error) {
	stats, err := e.indexer.IngestChunks(ctx, chunks)
	return stats, e.afterIngest(ctx, err)
}

func (e *Engine) afterIngest(ctx context.Context, err error) error {
	if err != nil {
		e.metrics.ObserveIngest("failure")
		return err
	}
	e.metrics.ObserveIngest("success")

	if err := e.Reload(ctx); err != nil {
		return err
	}

	// Cached results may reference chunks whose content changed
	if err := e.queryCache.Reset(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("failed to persist cleared query cache")
	}
	e.metrics.SetQueryCacheEntries(0)
	return nil
}

// Health reports corpus and cache sizes and the configured models
func (e *Engine) Health(ctx context.Context) (*types.Health, error) {
	corpus := e.searcher.Corpus()

	h := &types.Health{
		Status:                StatusOK,
		DocumentsIndexed:      corpus.Len(),
		EmbeddingModel:        e.embedder.Model(),
		RerankModel:           e.reranker.Model(),
		QueryCacheEntries:     e.queryCache.Len(),
		EmbeddingCacheEntries: e.embedCache.Len(),
	}
	if corpus != nil && corpus.Vectors != nil {
		h.VectorIndexSize = corpus.Vectors.Len()
	}

	switch {
	case e.lastLoadErr() != nil:
		h.Status = StatusDegraded
	case h.DocumentsIndexed == 0:
		h.Status = StatusEmpty
	}

	run, err := e.storage.LatestIngestRun(ctx)
	switch {
	case err == nil:
		completed := run.CompletedAt
		h.LastIndexedAt = &completed
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("read ingest history: %w", err)
	}

	return h, nil
}

// Status returns the stored snapshot summary
func (e *Engine) Status(ctx context.Context) (*storage.Status, error) {
	return e.storage.GetStatus(ctx)
}

// IndexingInProgress reports whether an ingest is running
func (e *Engine) IndexingInProgress() bool {
	return e.indexer.InProgress()
}

// Config returns the configuration the engine was built with
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Metrics returns the metrics sink, which may be nil
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// Close releases the models, cache stores and database
func (e *Engine) Close() error {
	var errs []error
	if e.embedder != nil {
		errs = append(errs, e.embedder.Close())
	}
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	if e.storage != nil {
		errs = append(errs, e.storage.Close())
	}
	return errors.Join(errs...)
}
