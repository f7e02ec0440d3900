package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/semcache/internal/retry"
	"github.com/dshills/semcache/pkg/types"
)

// Jina defaults
const (
	DefaultJinaModel    = "jina-reranker-v2-base-multilingual"
	DefaultJinaEndpoint = "https://api.jina.ai/v1/rerank"
)

// Jina scores pairs with the Jina AI rerank API, a hosted cross-encoder
type Jina struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	retry      retry.Config
	logger     zerolog.Logger
}

// NewJina creates a Jina reranker
func NewJina(cfg Config) (*Jina, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: JINA_API_KEY not set for jina reranker", types.ErrConfiguration)
	}

	j := &Jina{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry:  cfg.Retry,
		logger: cfg.Logger.With().Str("component", "reranker").Str("provider", ProviderJina).Logger(),
	}
	if j.model == "" {
		j.model = DefaultJinaModel
	}
	if j.endpoint == "" {
		j.endpoint = DefaultJinaEndpoint
	}
	return j, nil
}

func (j *Jina) Model() string {
	return j.model
}

func (j *Jina) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	scores, err := retry.Do(ctx, j.retry, j.logger, func() ([]float64, error) {
		return j.callAPI(ctx, query, documents)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: jina rerank: %w", types.ErrModelInvocation, err)
	}
	if err := checkScores(scores, documents); err != nil {
		return nil, err
	}
	return scores, nil
}

func (j *Jina) callAPI(ctx context.Context, query string, documents []string) ([]float64, error) {
	body, err := json.Marshal(map[string]interface{}{
		"model":     j.model,
		"query":     query,
		"documents": documents,
		"top_n":     len(documents),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Results) != len(documents) {
		return nil, fmt.Errorf("got %d results for %d documents", len(apiResp.Results), len(documents))
	}

	// Results come back sorted by relevance; restore document order
	scores := make([]float64, len(documents))
	seen := make([]bool, len(documents))
	for _, r := range apiResp.Results {
		if r.Index < 0 || r.Index >= len(documents) || seen[r.Index] {
			return nil, fmt.Errorf("invalid result index %d", r.Index)
		}
		seen[r.Index] = true
		scores[r.Index] = r.RelevanceScore
	}
	return scores, nil
}
