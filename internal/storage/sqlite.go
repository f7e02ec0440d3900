package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrNestedTx is returned when BeginTx is called on a transaction
	ErrNestedTx = errors.New("nested transactions not supported")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// inTx runs fn inside a fresh transaction on the main database
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Corpus operations

// replaceCorpusWithQuerier deletes the previous snapshot and inserts docs in order
func (s *SQLiteStorage) replaceCorpusWithQuerier(ctx context.Context, q querier, docs []Document) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}

	docQuery := `
		INSERT INTO documents (chunk_id, source_filename, ordinal, content, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	embQuery := `
		INSERT INTO embeddings (document_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	for i := range docs {
		doc := &docs[i]
		if err := doc.Chunk.Validate(); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}

		hash := doc.Chunk.ContentHash()
		err := q.QueryRowContext(ctx, docQuery,
			doc.Chunk.ID, doc.Chunk.SourceFilename, doc.Chunk.Ordinal,
			doc.Chunk.Content, hash[:], now).Scan(&doc.ID)
		if err != nil {
			return fmt.Errorf("failed to insert document %s: %w", doc.Chunk.ID, err)
		}
		doc.CreatedAt = now

		if doc.Vector == nil {
			continue
		}
		_, err = q.ExecContext(ctx, embQuery,
			doc.ID, serializeVector(doc.Vector), len(doc.Vector), doc.Provider, doc.Model, now)
		if err != nil {
			return fmt.Errorf("failed to insert embedding for %s: %w", doc.Chunk.ID, err)
		}
	}

	return nil
}

// ReplaceCorpus swaps the stored snapshot for docs in a single transaction
func (s *SQLiteStorage) ReplaceCorpus(ctx context.Context, docs []Document) error {
	return s.inTx(ctx, func(q querier) error {
		return s.replaceCorpusWithQuerier(ctx, q, docs)
	})
}

// loadCorpusWithQuerier returns the snapshot in insertion order
func (s *SQLiteStorage) loadCorpusWithQuerier(ctx context.Context, q querier) ([]Document, error) {
	query := `
		SELECT d.id, d.chunk_id, d.source_filename, d.ordinal, d.content, d.created_at,
		       e.vector, e.dimension, e.provider, e.model
		FROM documents d
		LEFT JOIN embeddings e ON e.document_id = d.id
		ORDER BY d.id
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	docs := make([]Document, 0)
	for rows.Next() {
		var doc Document
		var blob []byte
		var dimension sql.NullInt64
		var provider, model sql.NullString
		err := rows.Scan(
			&doc.ID, &doc.Chunk.ID, &doc.Chunk.SourceFilename, &doc.Chunk.Ordinal,
			&doc.Chunk.Content, &doc.CreatedAt,
			&blob, &dimension, &provider, &model,
		)
		if err != nil {
			return nil, err
		}
		if blob != nil {
			doc.Vector, err = deserializeVector(blob, int(dimension.Int64))
			if err != nil {
				return nil, fmt.Errorf("document %s: %w", doc.Chunk.ID, err)
			}
			doc.Provider = provider.String
			doc.Model = model.String
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (s *SQLiteStorage) LoadCorpus(ctx context.Context) ([]Document, error) {
	return s.loadCorpusWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) countDocumentsWithQuerier(ctx context.Context, q querier) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count)
	return count, err
}

func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int, error) {
	return s.countDocumentsWithQuerier(ctx, s.querier())
}

// Embedding cache operations

func (s *SQLiteStorage) loadCacheEntriesWithQuerier(ctx context.Context, q querier) ([]CacheEntry, error) {
	query := `
		SELECT chunk_id, fingerprint, vector, dimension, updated_at
		FROM embedding_cache
		ORDER BY chunk_id
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := make([]CacheEntry, 0)
	for rows.Next() {
		var entry CacheEntry
		var blob []byte
		var dimension int
		if err := rows.Scan(&entry.ChunkID, &entry.Fingerprint, &blob, &dimension, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entry.Vector, err = deserializeVector(blob, dimension)
		if err != nil {
			return nil, fmt.Errorf("cache entry %s: %w", entry.ChunkID, err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (s *SQLiteStorage) LoadCacheEntries(ctx context.Context) ([]CacheEntry, error) {
	return s.loadCacheEntriesWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) replaceCacheEntriesWithQuerier(ctx context.Context, q querier, entries []CacheEntry) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM embedding_cache"); err != nil {
		return fmt.Errorf("failed to clear embedding cache: %w", err)
	}

	query := `
		INSERT INTO embedding_cache (chunk_id, fingerprint, vector, dimension, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	now := time.Now()
	for _, entry := range entries {
		_, err := q.ExecContext(ctx, query,
			entry.ChunkID, entry.Fingerprint, serializeVector(entry.Vector), len(entry.Vector), now)
		if err != nil {
			return fmt.Errorf("failed to store cache entry %s: %w", entry.ChunkID, err)
		}
	}
	return nil
}

// ReplaceCacheEntries overwrites the persisted embedding cache atomically
func (s *SQLiteStorage) ReplaceCacheEntries(ctx context.Context, entries []CacheEntry) error {
	return s.inTx(ctx, func(q querier) error {
		return s.replaceCacheEntriesWithQuerier(ctx, q, entries)
	})
}

// Ingest bookkeeping

func (s *SQLiteStorage) recordIngestRunWithQuerier(ctx context.Context, q querier, run *IngestRun) error {
	query := `
		INSERT INTO ingest_runs (source_dir, files_loaded, chunks_total, chunks_embedded, chunks_reused,
		                         provider, model, duration_ms, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		run.SourceDir, run.FilesLoaded, run.ChunksTotal, run.ChunksEmbedded, run.ChunksReused,
		run.Provider, run.Model, run.Duration.Milliseconds(), run.StartedAt, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to record ingest run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

func (s *SQLiteStorage) RecordIngestRun(ctx context.Context, run *IngestRun) error {
	return s.recordIngestRunWithQuerier(ctx, s.querier(), run)
}

func (s *SQLiteStorage) latestIngestRunWithQuerier(ctx context.Context, q querier) (*IngestRun, error) {
	query := `
		SELECT id, source_dir, files_loaded, chunks_total, chunks_embedded, chunks_reused,
		       provider, model, duration_ms, started_at, completed_at
		FROM ingest_runs
		ORDER BY id DESC
		LIMIT 1
	`
	var run IngestRun
	var provider, model sql.NullString
	var durationMs sql.NullInt64
	err := q.QueryRowContext(ctx, query).Scan(
		&run.ID, &run.SourceDir, &run.FilesLoaded, &run.ChunksTotal, &run.ChunksEmbedded,
		&run.ChunksReused, &provider, &model, &durationMs, &run.StartedAt, &run.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.Provider = provider.String
	run.Model = model.String
	run.Duration = time.Duration(durationMs.Int64) * time.Millisecond
	return &run, nil
}

func (s *SQLiteStorage) LatestIngestRun(ctx context.Context) (*IngestRun, error) {
	return s.latestIngestRunWithQuerier(ctx, s.querier())
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{}

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&status.DocumentsCount); err != nil {
		return nil, err
	}

	if err := q.QueryRowContext(ctx, "SELECT COUNT(DISTINCT source_filename) FROM documents").Scan(&status.SourcesCount); err != nil {
		return nil, err
	}

	var dimension sql.NullInt64
	err := q.QueryRowContext(ctx, "SELECT COUNT(*), MAX(dimension) FROM embeddings").Scan(&status.EmbeddingsCount, &dimension)
	if err != nil {
		return nil, err
	}
	status.Dimension = int(dimension.Int64)

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM embedding_cache").Scan(&status.CacheEntriesCount); err != nil {
		return nil, err
	}

	run, err := s.latestIngestRunWithQuerier(ctx, q)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	status.LastIngest = run

	// Calculate database size
	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// Transaction implementations delegate to the querier-based helpers

func (t *sqliteTx) ReplaceCorpus(ctx context.Context, docs []Document) error {
	return t.storage.replaceCorpusWithQuerier(ctx, t.querier(), docs)
}

func (t *sqliteTx) LoadCorpus(ctx context.Context) ([]Document, error) {
	return t.storage.loadCorpusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) CountDocuments(ctx context.Context) (int, error) {
	return t.storage.countDocumentsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) LoadCacheEntries(ctx context.Context) ([]CacheEntry, error) {
	return t.storage.loadCacheEntriesWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) ReplaceCacheEntries(ctx context.Context, entries []CacheEntry) error {
	return t.storage.replaceCacheEntriesWithQuerier(ctx, t.querier(), entries)
}

func (t *sqliteTx) RecordIngestRun(ctx context.Context, run *IngestRun) error {
	return t.storage.recordIngestRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) LatestIngestRun(ctx context.Context) (*IngestRun, error) {
	return t.storage.latestIngestRunWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, ErrNestedTx
}
