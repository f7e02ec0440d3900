package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dshills/semcache/internal/fileutil"
	"github.com/dshills/semcache/pkg/types"
)

type fileRecord struct {
	Query     string               `json:"query"`
	Embedding []float32            `json:"embedding"`
	Results   []types.RankedResult `json:"results"`
}

// FileStore keeps the cache as a JSON array of {"query", "embedding", "results"} records
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

func (s *FileStore) Load(ctx context.Context) ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrStoreMissing
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var records []fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrCacheCorruption, s.path, err)
	}

	entries := make([]Entry, len(records))
	for i, rec := range records {
		if rec.Results == nil {
			rec.Results = []types.RankedResult{}
		}
		entries[i] = Entry{Query: rec.Query, Vector: rec.Embedding, Results: rec.Results}
	}
	return entries, nil
}

func (s *FileStore) Save(ctx context.Context, entries []Entry) error {
	records := make([]fileRecord, len(entries))
	for i, entry := range entries {
		records[i] = fileRecord{Query: entry.Query, Embedding: entry.Vector, Results: entry.Results}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal query cache: %w", err)
	}
	return fileutil.WriteAtomic(s.path, data, 0o644)
}
