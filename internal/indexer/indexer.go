package indexer

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/semcache/internal/chunker"
	"github.com/dshills/semcache/internal/embedcache"
	"github.com/dshills/semcache/internal/embedder"
	"github.com/dshills/semcache/internal/storage"
	"github.com/dshills/semcache/pkg/types"
)

// ErrNoDocuments is returned when an ingest finds nothing to index. The
// existing snapshot is left untouched.
var ErrNoDocuments = fmt.Errorf("%w: no documents to ingest", types.ErrInvalidArgument)

// Indexer coordinates the ingestion pipeline: load -> chunk -> embed -> store
type Indexer struct {
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	cache    *embedcache.Cache
	storage  storage.Storage
	logger   zerolog.Logger

	lock IndexLock

	// Worker pool configuration
	workers   int
	batchSize int
}

// Config contains configuration for the indexer
type Config struct {
	Workers   int // Concurrent embedding batches (default: runtime.NumCPU())
	BatchSize int // Texts per embedding call (default: embedder.DefaultBatchSize)
	Logger    zerolog.Logger
}

// Statistics contains statistics about an ingest
type Statistics struct {
	FilesLoaded    int
	ChunksTotal    int
	ChunksEmbedded int
	ChunksReused   int
	Duration       time.Duration
}

// New creates a new Indexer
func New(store storage.Storage, emb embedder.Embedder, cache *embedcache.Cache, ch *chunker.Chunker, config *Config) *Indexer {
	if config == nil {
		config = &Config{Logger: zerolog.Nop()}
	}
	if ch == nil {
		ch = chunker.Default()
	}

	idx := &Indexer{
		chunker:   ch,
		embedder:  emb,
		cache:     cache,
		storage:   store,
		logger:    config.Logger.With().Str("component", "indexer").Logger(),
		workers:   config.Workers,
		batchSize: config.BatchSize,
	}
	if idx.workers <= 0 {
		idx.workers = runtime.NumCPU()
	}
	if idx.batchSize <= 0 || idx.batchSize > embedder.MaxBatchSize {
		idx.batchSize = embedder.DefaultBatchSize
	}
	return idx
}

// InProgress reports whether an ingest is running
func (idx *Indexer) InProgress() bool {
	return idx.lock.Held()
}

// Ingest loads every text file in dir and replaces the stored corpus with its chunks
func (idx *Indexer) Ingest(ctx context.Context, dir string) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, types.ErrIndexingInProgress
	}
	defer idx.lock.Release()

	started := time.Now()
	docs, err := LoadDirectory(ctx, dir, idx.logger)
	if err != nil {
		return nil, err
	}

	var chunks []types.Chunk
	files := 0
	for _, doc := range docs {
		docChunks := idx.chunker.ChunkDocument(doc.Filename, doc.Content)
		if len(docChunks) == 0 {
			idx.logger.Debug().Str("file", doc.Filename).Msg("skipping empty file")
			continue
		}
		files++
		chunks = append(chunks, docChunks...)
	}
	idx.logger.Info().Int("files", files).Int("chunks", len(chunks)).Str("dir", dir).Msg("documents loaded")

	return idx.ingest(ctx, chunks, dir, started)
}

// IngestChunks replaces the stored corpus with pre-built chunks
func (idx *Indexer) IngestChunks(ctx context.Context, chunks []types.Chunk) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, types.ErrIndexingInProgress
	}
	defer idx.lock.Release()

	return idx.ingest(ctx, chunks, "", time.Now())
}

func (idx *Indexer) ingest(ctx context.Context, chunks []types.Chunk, sourceDir string, started time.Time) (*Statistics, error) {
	if len(chunks) == 0 {
		return nil, ErrNoDocuments
	}
	if err := validateChunks(chunks); err != nil {
		return nil, err
	}

	vectors, missing := idx.cache.Partition(chunks)
	missing = dropStale(vectors, missing, idx.embedder.Dimension())
	stats := &Statistics{
		FilesLoaded:    countSources(chunks),
		ChunksTotal:    len(chunks),
		ChunksEmbedded: len(missing),
		ChunksReused:   len(chunks) - len(missing),
	}

	if err := idx.embedMissing(ctx, chunks, missing, vectors); err != nil {
		return nil, err
	}

	if len(missing) > 0 {
		if err := idx.cache.Persist(ctx); err != nil {
			idx.logger.Warn().Err(err).Msg("failed to persist embedding cache")
		}
	}

	if err := idx.writeSnapshot(ctx, chunks, vectors, sourceDir, started, stats); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(started)
	idx.logger.Info().
		Int("chunks", stats.ChunksTotal).
		Int("embedded", stats.ChunksEmbedded).
		Int("reused", stats.ChunksReused).
		Dur("duration", stats.Duration).
		Msg("ingest complete")
	return stats, nil
}

// embedMissing embeds chunks[missing[i]] in concurrent batches, filling vectors
// and the embedding cache
func (idx *Indexer) embedMissing(ctx context.Context, chunks []types.Chunk, missing []int, vectors [][]float32) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	var done atomic.Int32
	for start := 0; start < len(missing); start += idx.batchSize {
		batch := missing[start:min(start+idx.batchSize, len(missing))]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for j, i := range batch {
				texts[j] = chunks[i].Content
			}

			resp, err := idx.embedder.GenerateBatch(gctx, embedder.BatchEmbeddingRequest{Texts: texts})
			if err != nil {
				return fmt.Errorf("embed batch: %w", err)
			}

			// Each batch writes a disjoint set of indices
			for j, i := range batch {
				vec := resp.Embeddings[j].Vector
				vectors[i] = vec
				idx.cache.Insert(chunks[i].ID, chunks[i].Content, vec)
			}

			idx.logger.Debug().
				Int32("embedded", done.Add(int32(len(batch)))).
				Int("total", len(missing)).
				Msg("embedding progress")
			return nil
		})
	}
	return g.Wait()
}

// writeSnapshot replaces the stored corpus and records the run in one transaction
func (idx *Indexer) writeSnapshot(ctx context.Context, chunks []types.Chunk, vectors [][]float32,
	sourceDir string, started time.Time, stats *Statistics) error {

	docs := make([]storage.Document, len(chunks))
	for i := range chunks {
		docs[i] = storage.Document{
			Chunk:    chunks[i],
			Vector:   vectors[i],
			Provider: idx.embedder.Provider(),
			Model:    idx.embedder.Model(),
		}
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.ReplaceCorpus(ctx, docs); err != nil {
		return fmt.Errorf("failed to replace corpus: %w", err)
	}

	run := &storage.IngestRun{
		SourceDir:      sourceDir,
		FilesLoaded:    stats.FilesLoaded,
		ChunksTotal:    stats.ChunksTotal,
		ChunksEmbedded: stats.ChunksEmbedded,
		ChunksReused:   stats.ChunksReused,
		Provider:       idx.embedder.Provider(),
		Model:          idx.embedder.Model(),
		Duration:       time.Since(started),
		StartedAt:      started,
		CompletedAt:    time.Now(),
	}
	if err := tx.RecordIngestRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record ingest run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// dropStale marks cached vectors whose dimension differs from the embedder's
// (left over from another provider or model) as missing
func dropStale(vectors [][]float32, missing []int, dim int) []int {
	stale := false
	for i, v := range vectors {
		if v != nil && len(v) != dim {
			vectors[i] = nil
			stale = true
		}
	}
	if !stale {
		return missing
	}

	missing = missing[:0]
	for i, v := range vectors {
		if v == nil {
			missing = append(missing, i)
		}
	}
	return missing
}

func validateChunks(chunks []types.Chunk) error {
	seen := make(map[string]struct{}, len(chunks))
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return fmt.Errorf("%w: chunk %d: %w", types.ErrInvalidArgument, i, err)
		}
		if _, dup := seen[chunks[i].ID]; dup {
			return fmt.Errorf("%w: duplicate chunk ID %q", types.ErrInvalidArgument, chunks[i].ID)
		}
		seen[chunks[i].ID] = struct{}{}
	}
	return nil
}

func countSources(chunks []types.Chunk) int {
	sources := make(map[string]struct{})
	for i := range chunks {
		sources[chunks[i].SourceFilename] = struct{}{}
	}
	return len(sources)
}
