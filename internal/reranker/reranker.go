package reranker

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/semcache/internal/retry"
	"github.com/dshills/semcache/pkg/types"
)

// Provider names
const (
	ProviderLocal = "local"
	ProviderJina  = "jina"
)

// ErrUnknownProvider is returned for an unrecognized rerank_provider
var ErrUnknownProvider = fmt.Errorf("%w: unknown rerank provider", types.ErrConfiguration)

// Reranker scores (query, document) pairs. Higher scores mean more relevant.
type Reranker interface {
	// Score returns one score per document, in document order
	Score(ctx context.Context, query string, documents []string) ([]float64, error)

	// Model returns the model name reported in health output
	Model() string
}

// Config selects and configures a reranker
type Config struct {
	Provider string
	Model    string
	APIKey   string
	Endpoint string
	Retry    retry.Config
	Logger   zerolog.Logger
}

// New creates the reranker named by cfg.Provider
func New(cfg Config) (Reranker, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderLocal, "":
		return NewLocal(), nil
	case ProviderJina:
		return NewJina(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// checkScores enforces the one-score-per-document contract
func checkScores(scores []float64, documents []string) error {
	if len(scores) != len(documents) {
		return fmt.Errorf("%w: reranker returned %d scores for %d documents",
			types.ErrModelInvocation, len(scores), len(documents))
	}
	return nil
}
