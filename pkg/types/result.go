package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultK and DefaultAlpha mirror the HTTP API defaults
const (
	DefaultK     = 5
	DefaultAlpha = 0.5
)

// SearchRequest describes a single retrieval call
type SearchRequest struct {
	Query  string  `json:"query"`
	K      int     `json:"k"`
	Alpha  float64 `json:"alpha"`
	Rerank bool    `json:"rerank"`
}

// Validate rejects requests the pipeline must not execute. K is never clamped.
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidArgument)
	}

	if r.K <= 0 {
		return fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidArgument, r.K)
	}

	if math.IsNaN(r.Alpha) || r.Alpha < 0 || r.Alpha > 1 {
		return fmt.Errorf("%w: alpha must be between 0 and 1, got %v", ErrInvalidArgument, r.Alpha)
	}

	return nil
}

// RankedResult is one scored chunk returned by a search
type RankedResult struct {
	// Identification
	ChunkID        string `json:"id"`
	SourceFilename string `json:"filename"`
	Content        string `json:"content"`

	// Scoring
	FusedScore   float64  `json:"score"`
	VectorScore  float64  `json:"vector_score"`
	LexicalScore float64  `json:"bm25_score"`
	OverlapScore float64  `json:"overlap_score"`
	RerankScore  *float64 `json:"rerank_score,omitempty"` // Set only when reranking ran

	// Explanation
	MatchedTerms []string `json:"matched_terms"`
	Explanation  string   `json:"explanation"`
}

// Clone returns a deep copy of the result
func (r RankedResult) Clone() RankedResult {
	dst := r
	if r.MatchedTerms != nil {
		dst.MatchedTerms = make([]string, len(r.MatchedTerms))
		copy(dst.MatchedTerms, r.MatchedTerms)
	}
	if r.RerankScore != nil {
		score := *r.RerankScore
		dst.RerankScore = &score
	}
	return dst
}

// CloneResults deep-copies a result list
func CloneResults(src []RankedResult) []RankedResult {
	if src == nil {
		return nil
	}
	dst := make([]RankedResult, len(src))
	for i := range src {
		dst[i] = src[i].Clone()
	}
	return dst
}

// Health summarizes the state of a loaded engine
type Health struct {
	Status                string `json:"status"`
	DocumentsIndexed      int    `json:"documents_indexed"`
	VectorIndexSize       int    `json:"vector_index_size"`
	EmbeddingModel        string `json:"embedding_model"`
	RerankModel           string `json:"rerank_model"`
	QueryCacheEntries     int    `json:"query_cache_entries"`
	EmbeddingCacheEntries int    `json:"embedding_cache_entries"`

	LastIndexedAt *time.Time `json:"last_indexed_at,omitempty"`
}
