package types

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// Chunk is a contiguous text segment of a source document, the unit of retrieval
type Chunk struct {
	// Identification
	ID             string
	SourceFilename string
	Ordinal        int // Position of the chunk within its source document

	// Content
	Content string
}

// ChunkID builds the canonical identifier "<filename>_chunk_<ordinal>"
func ChunkID(filename string, ordinal int) string {
	return fmt.Sprintf("%s_chunk_%d", filename, ordinal)
}

// ContentHash returns the SHA-256 digest of the chunk content
func (c *Chunk) ContentHash() [32]byte {
	return sha256.Sum256([]byte(c.Content))
}

// Validate checks the chunk is usable for indexing
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return ErrInvalidChunkID
	}

	if c.Content == "" {
		return ErrEmptyContent
	}

	if c.Ordinal < 0 {
		return errors.New("ordinal must be non-negative")
	}

	return nil
}
