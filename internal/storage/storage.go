package storage

import (
	"context"
	"time"

	"github.com/dshills/semcache/pkg/types"
)

// Storage defines the interface for persisting the corpus snapshot and its caches
type Storage interface {
	// Corpus operations
	ReplaceCorpus(ctx context.Context, docs []Document) error
	LoadCorpus(ctx context.Context) ([]Document, error)
	CountDocuments(ctx context.Context) (int, error)

	// Embedding cache operations
	LoadCacheEntries(ctx context.Context) ([]CacheEntry, error)
	ReplaceCacheEntries(ctx context.Context, entries []CacheEntry) error

	// Ingest bookkeeping
	RecordIngestRun(ctx context.Context, run *IngestRun) error
	LatestIngestRun(ctx context.Context) (*IngestRun, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Document is one chunk of the corpus snapshot together with its embedding
type Document struct {
	ID        int64
	Chunk     types.Chunk
	Vector    []float32 // nil when the chunk has no stored embedding
	Provider  string
	Model     string
	CreatedAt time.Time
}

// CacheEntry is a persisted embedding-cache record keyed by chunk ID
type CacheEntry struct {
	ChunkID     string
	Fingerprint string // Hex SHA-256 of the content the vector was computed from
	Vector      []float32
	UpdatedAt   time.Time
}

// IngestRun records the outcome of one batch ingestion
type IngestRun struct {
	ID             int64
	SourceDir      string
	FilesLoaded    int
	ChunksTotal    int
	ChunksEmbedded int
	ChunksReused   int
	Provider       string
	Model          string
	Duration       time.Duration
	StartedAt      time.Time
	CompletedAt    time.Time
}

// Status summarizes the stored snapshot
type Status struct {
	DocumentsCount    int
	EmbeddingsCount   int
	SourcesCount      int
	CacheEntriesCount int
	Dimension         int
	LastIngest        *IngestRun
	IndexSizeMB       float64
	Health            HealthStatus
}

// HealthStatus represents database health
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
}
