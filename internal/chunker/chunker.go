package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/semcache/pkg/types"
)

const (
	// DefaultChunkSize is the window length in words
	DefaultChunkSize = 256

	// DefaultChunkOverlap is the number of words shared by consecutive windows
	DefaultChunkOverlap = 50
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Chunker splits cleaned document text into overlapping word windows
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. overlap must be smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", types.ErrConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", types.ErrConfiguration, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Default returns a Chunker with the default window and overlap
func Default() *Chunker {
	return &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
}

// Clean strips markup tags and collapses runs of whitespace to a single space
func Clean(text string) string {
	text = tagPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// Split returns the windows of text. Text no longer than one window is
// returned whole. Otherwise windows start every size-overlap words until the
// start passes the end, so the tail may be covered by more than one window.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= c.size {
		return []string{strings.Join(words, " ")}
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := min(start+c.size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

// ChunkDocument cleans raw text and returns its chunks with IDs derived from
// filename and ordinal. A document that is empty after cleaning yields nil.
func (c *Chunker) ChunkDocument(filename, raw string) []types.Chunk {
	parts := c.Split(Clean(raw))
	if len(parts) == 0 {
		return nil
	}

	chunks := make([]types.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = types.Chunk{
			ID:             types.ChunkID(filename, i),
			SourceFilename: filename,
			Ordinal:        i,
			Content:        part,
		}
	}
	return chunks
}
