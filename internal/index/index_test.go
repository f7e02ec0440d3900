package index

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semcache/pkg/types"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"cats", "are", "mammals."}, Tokenize("  Cats ARE\tmammals.\n"))
	assert.Empty(t, Tokenize("   "))
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)

	in := []float32{1, 1}
	_ = Normalize(in)
	assert.Equal(t, []float32{1, 1}, in, "input must not be modified")
}

func TestFlatIndexSearch(t *testing.T) {
	idx, err := NewFlatIndex(2, [][]float32{
		{1, 0},
		{0, 1},
		{1, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 2, idx.Dimension())

	hits, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, 2, hits[1].ID)
	assert.InDelta(t, math.Sqrt2/2, hits[1].Score, 1e-6)
}

func TestFlatIndexExactScores(t *testing.T) {
	idx, err := NewFlatIndex(3, [][]float32{
		{0, 2, 0},
		{-1, 0, 0},
		{0, 0, 5},
	})
	require.NoError(t, err)

	hits, err := idx.Search([]float32{0, 1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, Hit{ID: 0, Score: 1}, hits[0])
	assert.Equal(t, Hit{ID: 1, Score: 0}, hits[1])
	assert.Equal(t, Hit{ID: 2, Score: 0}, hits[2])

	hits, err = idx.Search([]float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []Hit{{ID: 0, Score: 0}}, hits)

	hits, err = idx.Search([]float32{-3, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []Hit{{ID: 1, Score: 1}}, hits)
}

func TestFlatIndexFewerThanK(t *testing.T) {
	idx, err := NewFlatIndex(2, [][]float32{{1, 0}})
	require.NoError(t, err)

	hits, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.ID, 0)
	}
}

func TestFlatIndexTiesByID(t *testing.T) {
	idx, err := NewFlatIndex(2, [][]float32{{0, 1}, {2, 0}, {1, 0}})
	require.NoError(t, err)

	hits, err := idx.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, hits[0].ID)
	assert.Equal(t, 2, hits[1].ID)
	assert.Equal(t, 0, hits[2].ID)
}

func TestFlatIndexErrors(t *testing.T) {
	_, err := NewFlatIndex(0, nil)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = NewFlatIndex(3, [][]float32{{1, 0, 0}, {1, 0}})
	assert.ErrorIs(t, err, types.ErrConfiguration)

	idx, err := NewFlatIndex(3, [][]float32{{1, 0, 0}})
	require.NoError(t, err)
	_, err = idx.Search([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, types.ErrIndexUnavailable)
}

func TestFlatIndexEmpty(t *testing.T) {
	idx, err := NewFlatIndex(2, nil)
	require.NoError(t, err)

	hits, err := idx.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func corpus() [][]string {
	return [][]string{
		Tokenize("cats are mammals"),
		Tokenize("dogs are loyal"),
		Tokenize("python is a programming language"),
	}
}

func TestBM25Scores(t *testing.T) {
	bm := NewBM25(corpus())
	assert.Equal(t, 3, bm.Len())

	scores := bm.Scores(Tokenize("cats"))
	require.Len(t, scores, 3)
	assert.InDelta(t, 0.5563447387550393, scores[0], 1e-9)
	assert.Zero(t, scores[1])
	assert.Zero(t, scores[2])
}

func TestBM25CommonTermUsesEpsilon(t *testing.T) {
	bm := NewBM25(corpus())

	// "are" appears in two of three documents, so its idf is replaced by
	// epsilon times the average idf
	scores := bm.Scores(Tokenize("cats are"))
	assert.InDelta(t, 0.6676136865060472, scores[0], 1e-9)
	assert.InDelta(t, 0.11126894775100789, scores[1], 1e-9)
	assert.Zero(t, scores[2])
}

func TestBM25UnknownTerms(t *testing.T) {
	bm := NewBM25(corpus())
	for _, s := range bm.Scores(Tokenize("quantum chromodynamics")) {
		assert.Zero(t, s)
	}
	assert.Len(t, bm.Scores(nil), 3)
}

func TestBM25EmptyCorpus(t *testing.T) {
	bm := NewBM25(nil)
	assert.Empty(t, bm.Scores(Tokenize("cats")))
}

func TestTopN(t *testing.T) {
	scores := []float64{0.5, 2, 0.5, 1}
	assert.Equal(t, []int{1, 3, 0}, TopN(scores, 3))
	assert.Equal(t, []int{1, 3, 0, 2}, TopN(scores, 10))
	assert.Empty(t, TopN(scores, 0))
}

func TestMaxScore(t *testing.T) {
	assert.Equal(t, 2.0, MaxScore([]float64{0.5, 2, 1}))
	assert.Equal(t, 1.0, MaxScore([]float64{0, 0}))
	assert.Equal(t, 1.0, MaxScore(nil))
}
