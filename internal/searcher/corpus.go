package searcher

import (
	"fmt"

	"github.com/dshills/semcache/internal/index"
	"github.com/dshills/semcache/pkg/types"
)

// VectorIndex answers nearest-neighbour queries over the corpus embeddings.
// Hit IDs are corpus positions; negative IDs are padding and are ignored.
type VectorIndex interface {
	Search(query []float32, k int) ([]index.Hit, error)
	Len() int
}

// LexicalIndex scores every corpus document against query tokens, in corpus order
type LexicalIndex interface {
	Scores(query []string) []float64
}

// Corpus is an immutable snapshot of chunks and the indices built over them.
// Position i in Chunks is ID i in both indices.
type Corpus struct {
	Chunks  []types.Chunk
	Vectors VectorIndex
	Lexical LexicalIndex
}

// NewCorpus builds the vector and lexical indices for chunks. vectors must be
// aligned with chunks and have dim components each.
func NewCorpus(chunks []types.Chunk, vectors [][]float32, dim int) (*Corpus, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks but %d vectors", types.ErrIndexUnavailable, len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: chunk %s has no embedding", types.ErrIndexUnavailable, chunks[i].ID)
		}
	}

	flat, err := index.NewFlatIndex(dim, vectors)
	if err != nil {
		return nil, err
	}

	docs := make([][]string, len(chunks))
	for i := range chunks {
		docs[i] = index.Tokenize(chunks[i].Content)
	}

	return &Corpus{
		Chunks:  chunks,
		Vectors: flat,
		Lexical: index.NewBM25(docs),
	}, nil
}

// Len returns the number of chunks
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Chunks)
}

// Empty reports whether there is nothing to search
func (c *Corpus) Empty() bool {
	return c.Len() == 0 || c.Vectors == nil || c.Lexical == nil
}
