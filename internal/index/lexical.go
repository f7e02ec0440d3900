package index

import (
	"math"
	"sort"
)

// BM25 parameters
const (
	DefaultK1      = 1.5
	DefaultB       = 0.75
	DefaultEpsilon = 0.25
)

// BM25 scores documents against a query with the Okapi BM25 ranking function.
// Terms whose idf would be negative (present in more than half the corpus)
// get epsilon times the average idf instead.
type BM25 struct {
	k1, b    float64
	docLen   []int
	avgdl    float64
	termFreq []map[string]int
	idf      map[string]float64
}

// NewBM25 indexes the tokenized documents
func NewBM25(docs [][]string) *BM25 {
	m := &BM25{
		k1:       DefaultK1,
		b:        DefaultB,
		docLen:   make([]int, len(docs)),
		termFreq: make([]map[string]int, len(docs)),
		idf:      make(map[string]float64),
	}

	docFreq := make(map[string]int)
	total := 0
	for i, tokens := range docs {
		m.docLen[i] = len(tokens)
		total += len(tokens)

		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		m.termFreq[i] = tf
		for tok := range tf {
			docFreq[tok]++
		}
	}
	if len(docs) > 0 {
		m.avgdl = float64(total) / float64(len(docs))
	}

	m.computeIDF(docFreq, len(docs))
	return m
}

func (m *BM25) computeIDF(docFreq map[string]int, n int) {
	if len(docFreq) == 0 {
		return
	}

	var sum float64
	var negative []string
	for term, df := range docFreq {
		idf := math.Log(float64(n-df)+0.5) - math.Log(float64(df)+0.5)
		m.idf[term] = idf
		sum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}

	eps := DefaultEpsilon * sum / float64(len(docFreq))
	for _, term := range negative {
		m.idf[term] = eps
	}
}

// Len returns the number of indexed documents
func (m *BM25) Len() int {
	return len(m.docLen)
}

// Scores returns the BM25 score of every document for the query tokens, in corpus order.
// A repeated query token contributes once per occurrence.
func (m *BM25) Scores(query []string) []float64 {
	scores := make([]float64, len(m.docLen))
	if m.avgdl == 0 {
		return scores
	}

	for _, q := range query {
		idf, ok := m.idf[q]
		if !ok {
			continue
		}
		for i, tf := range m.termFreq {
			f := float64(tf[q])
			if f == 0 {
				continue
			}
			norm := m.k1 * (1 - m.b + m.b*float64(m.docLen[i])/m.avgdl)
			scores[i] += idf * f * (m.k1 + 1) / (f + norm)
		}
	}
	return scores
}

// TopN returns the positions of the n highest scores in descending order,
// ties broken by ascending position.
func TopN(scores []float64, n int) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if n < 0 {
		n = 0
	}
	if n < len(order) {
		order = order[:n]
	}
	return order
}

// MaxScore returns the largest score, or 1 when it is zero or scores is empty,
// so it can be used directly as a normalization divisor.
func MaxScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 1
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s > best {
			best = s
		}
	}
	if best == 0 {
		return 1
	}
	return best
}
