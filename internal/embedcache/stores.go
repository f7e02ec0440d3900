package embedcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/dshills/semcache/internal/fileutil"
	"github.com/dshills/semcache/internal/storage"
	"github.com/dshills/semcache/pkg/types"
)

// Backend names for the cache_backend setting
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// fileRecord is the on-disk form of one entry in the JSON companion file
type fileRecord struct {
	Hash      string    `json:"hash"`
	Embedding []float32 `json:"embedding"`
}

// FileStore keeps the cache in a single JSON document: {"<chunk_id>": {"hash": ..., "embedding": [...]}}
type FileStore struct {
	path string
}

// NewFileStore creates a JSON file store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (map[string]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrStoreMissing
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var records map[string]fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrCacheCorruption, s.path, err)
	}

	entries := make(map[string]Entry, len(records))
	for id, rec := range records {
		fp, err := ParseFingerprint(rec.Hash)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %s: %v", types.ErrCacheCorruption, id, err)
		}
		entries[id] = Entry{Fingerprint: fp, Vector: rec.Embedding}
	}
	return entries, nil
}

func (s *FileStore) Save(ctx context.Context, entries map[string]Entry) error {
	records := make(map[string]fileRecord, len(entries))
	for id, entry := range entries {
		records[id] = fileRecord{Hash: entry.Fingerprint.String(), Embedding: entry.Vector}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal embedding cache: %w", err)
	}
	return fileutil.WriteAtomic(s.path, data, 0o644)
}

// cacheTable is the subset of storage.Storage used by SQLiteStore
type cacheTable interface {
	LoadCacheEntries(ctx context.Context) ([]storage.CacheEntry, error)
	ReplaceCacheEntries(ctx context.Context, entries []storage.CacheEntry) error
}

// SQLiteStore keeps the cache in the embedding_cache table next to the corpus snapshot
type SQLiteStore struct {
	db cacheTable
}

// NewSQLiteStore wraps a storage backend
func NewSQLiteStore(db cacheTable) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]Entry, error) {
	rows, err := s.db.LoadCacheEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCacheCorruption, err)
	}
	if len(rows) == 0 {
		return nil, ErrStoreMissing
	}

	entries := make(map[string]Entry, len(rows))
	for _, row := range rows {
		fp, err := ParseFingerprint(row.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %s: %v", types.ErrCacheCorruption, row.ChunkID, err)
		}
		entries[row.ChunkID] = Entry{Fingerprint: fp, Vector: row.Vector}
	}
	return entries, nil
}

func (s *SQLiteStore) Save(ctx context.Context, entries map[string]Entry) error {
	rows := make([]storage.CacheEntry, 0, len(entries))
	for id, entry := range entries {
		rows = append(rows, storage.CacheEntry{
			ChunkID:     id,
			Fingerprint: entry.Fingerprint.String(),
			Vector:      entry.Vector,
		})
	}
	return s.db.ReplaceCacheEntries(ctx, rows)
}

// badgerKeyPrefix namespaces cache keys inside the Badger database
const badgerKeyPrefix = "embcache/"

// BadgerStore keeps one key per chunk in an embedded Badger database
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database at dir
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) Load(ctx context.Context) (map[string]Entry, error) {
	entries := make(map[string]Entry)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), badgerKeyPrefix)
			err := item.Value(func(val []byte) error {
				var rec fileRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("%w: entry %s: %v", types.ErrCacheCorruption, id, err)
				}
				fp, err := ParseFingerprint(rec.Hash)
				if err != nil {
					return fmt.Errorf("%w: entry %s: %v", types.ErrCacheCorruption, id, err)
				}
				entries[id] = Entry{Fingerprint: fp, Vector: rec.Embedding}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrStoreMissing
	}
	return entries, nil
}

// Save rewrites every key in one transaction, deleting entries no longer present
func (s *BadgerStore) Save(ctx context.Context, entries map[string]Entry) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, ok := entries[strings.TrimPrefix(string(key), badgerKeyPrefix)]; !ok {
				stale = append(stale, key)
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for id, entry := range entries {
			val, err := json.Marshal(fileRecord{Hash: entry.Fingerprint.String(), Embedding: entry.Vector})
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(badgerKeyPrefix+id), val); err != nil {
				return fmt.Errorf("store %s: %w", id, err)
			}
		}
		return nil
	})
}
