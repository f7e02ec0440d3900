package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// SourceDocument is one raw text file read from the data directory
type SourceDocument struct {
	Filename string
	Content  string
}

// LoadDirectory reads every *.txt file directly inside dir in name order.
// Unreadable files are logged and skipped; invalid UTF-8 is dropped.
func LoadDirectory(ctx context.Context, dir string, logger zerolog.Logger) ([]SourceDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	docs := make([]SourceDocument, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Err(err).Str("file", name).Msg("skipping unreadable file")
			continue
		}
		docs = append(docs, SourceDocument{
			Filename: name,
			Content:  strings.ToValidUTF8(string(data), ""),
		})
	}
	return docs, nil
}
