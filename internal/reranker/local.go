package reranker

import (
	"context"
	"strings"

	"github.com/hbollon/go-edlib"
)

// LocalModel is the model name reported by the local reranker
const LocalModel = "edlib-hybrid"

// Local scores pairs offline with a blend of character-bigram cosine
// similarity (0.7) and word Jaccard similarity (0.3), both case-insensitive.
type Local struct{}

// NewLocal creates a local reranker
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	q := strings.ToLower(query)
	scores := make([]float64, len(documents))
	for i, doc := range documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores[i] = hybridSimilarity(q, strings.ToLower(doc))
	}
	return scores, nil
}

func (l *Local) Model() string {
	return LocalModel
}

func hybridSimilarity(a, b string) float64 {
	jaccard := edlib.JaccardSimilarity(a, b, 0) // words
	cosine := edlib.CosineSimilarity(a, b, 2)   // character bigrams
	return float64(0.7*cosine + 0.3*jaccard)
}
