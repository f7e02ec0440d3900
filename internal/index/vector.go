package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/viant/vec/search"

	"github.com/dshills/semcache/pkg/types"
)

// Hit is one vector search result. ID is the position of the vector in the
// slice passed to Build.
type Hit struct {
	ID    int
	Score float64
}

// FlatIndex performs exact nearest-neighbour search by inner product over
// unit-normalized vectors, which equals cosine similarity.
type FlatIndex struct {
	dim     int
	vectors []search.Float32s
	mags    []float32
}

// NewFlatIndex builds an index over vectors. Every vector must have dim
// components; vectors are normalized on insertion.
func NewFlatIndex(dim int, vectors [][]float32) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: vector dimension must be positive, got %d", types.ErrConfiguration, dim)
	}

	idx := &FlatIndex{
		dim:     dim,
		vectors: make([]search.Float32s, len(vectors)),
		mags:    make([]float32, len(vectors)),
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, index expects %d",
				types.ErrConfiguration, i, len(v), dim)
		}
		unit := search.Float32s(Normalize(v))
		idx.vectors[i] = unit
		idx.mags[i] = unit.Magnitude()
	}
	return idx, nil
}

// Dimension returns the vector dimension
func (f *FlatIndex) Dimension() int {
	return f.dim
}

// Len returns the number of indexed vectors
func (f *FlatIndex) Len() int {
	return len(f.vectors)
}

// Search returns up to k hits ordered by descending score, ties by ascending ID.
// Fewer than k hits are returned when the index is smaller than k.
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d",
			types.ErrIndexUnavailable, len(query), f.dim)
	}
	if k <= 0 || len(f.vectors) == 0 {
		return []Hit{}, nil
	}

	q := search.Float32s(query)
	mq := q.Magnitude()

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		score := 0.0
		if mq != 0 && f.mags[i] != 0 {
			score = dot(q, v) / (float64(mq) * float64(f.mags[i]))
		}
		hits[i] = Hit{ID: i, Score: score}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// dot accumulates in float64 so unit vectors score exactly as their inner product
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Normalize returns a unit-length copy of v. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	copy(out, v)
	if sum == 0 {
		return out
	}

	norm := math.Sqrt(sum)
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}
