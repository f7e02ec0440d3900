package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/ollama/ollama/api"
	openai "github.com/sashabaranov/go-openai"
)

// Provider configuration
const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
	ProviderJina   = "jina"
	ProviderOllama = "ollama"

	// Default models
	DefaultLocalModel  = "hashing-bow-v1"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOllamaModel = "all-minilm"

	DefaultJinaURL = "https://api.jina.ai/v1/embeddings"

	// LocalDimension matches all-MiniLM-L6-v2, so the default configuration works with every provider
	LocalDimension = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100
)

// LocalProvider embeds text offline by feature hashing: every token and token
// bigram is hashed into one of dim buckets with a hash-derived sign, and the
// result is L2-normalized. Texts sharing vocabulary get similar vectors.
type LocalProvider struct {
	base
}

// NewLocalProvider creates a local embedder producing dim-dimensional vectors
func NewLocalProvider(dim int, memo *Memo) *LocalProvider {
	if dim <= 0 {
		dim = LocalDimension
	}
	p := &LocalProvider{base: newBase(ProviderLocal, DefaultLocalModel, dim, memo)}
	p.call = p.embed
	return p
}

func (l *LocalProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.vector(text)
	}
	return out, nil
}

func (l *LocalProvider) vector(text string) []float32 {
	v := make([]float64, l.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	add := func(feature string, weight float64) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1
		}
		v[sum%uint64(l.dim)] += sign * weight
	}
	for i, w := range words {
		add(w, 1)
		if i > 0 {
			add(words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	out := make([]float32, l.dim)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

func (l *LocalProvider) Close() error {
	return nil
}

// OpenAIProvider embeds text with the OpenAI embeddings API
type OpenAIProvider struct {
	base
	client *openai.Client
}

// NewOpenAIProvider creates an OpenAI embedder. baseURL may be empty.
func NewOpenAIProvider(apiKey, model, baseURL string, dim int, memo *Memo) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrNoProviderEnabled)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	p := &OpenAIProvider{
		base: newBase(ProviderOpenAI, model, dim, memo),
		client: openai.NewClientWithConfig(cfg),
	}
	p.call = p.callAPI
	return p, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: o.dim,
	})
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}

	out := make([][]float32, len(resp.Data))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		out[data.Index] = data.Embedding
	}
	return out, nil
}

func (o *OpenAIProvider) Close() error {
	return nil
}

// JinaProvider embeds text with the Jina AI embeddings API
type JinaProvider struct {
	base
	apiKey     string
	url        string
	httpClient *http.Client
}

// NewJinaProvider creates a Jina AI embedder. endpoint may be empty.
func NewJinaProvider(apiKey, model, endpoint string, dim int, memo *Memo) (*JinaProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: JINA_API_KEY not set", ErrNoProviderEnabled)
	}
	if model == "" {
		model = DefaultJinaModel
	}
	if endpoint == "" {
		endpoint = DefaultJinaURL
	}

	p := &JinaProvider{
		base: newBase(ProviderJina, model, dim, memo),
		apiKey: apiKey,
		url:    endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	p.call = p.callAPI
	return p, nil
}

func (j *JinaProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input":      texts,
		"model":      j.model,
		"dimensions": j.dim,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, bytes.NewReader(body))
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
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([][]float32, len(apiResp.Data))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		out[data.Index] = data.Embedding
	}
	return out, nil
}

func (j *JinaProvider) Close() error {
	j.httpClient.CloseIdleConnections()
	return nil
}

// OllamaProvider embeds text with a local Ollama server
type OllamaProvider struct {
	base
	client *api.Client
}

// NewOllamaProvider creates an Ollama embedder. An empty host uses OLLAMA_HOST
// or the Ollama default.
func NewOllamaProvider(host, model string, dim int, memo *Memo) (*OllamaProvider, error) {
	if model == "" {
		model = DefaultOllamaModel
	}

	var client *api.Client
	if host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client from environment: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host: %w", err)
		}
		client = api.NewClient(u, http.DefaultClient)
	}

	p := &OllamaProvider{
		base: newBase(ProviderOllama, model, dim, memo),
		client: client,
	}
	p.call = p.callAPI
	return p, nil
}

func (o *OllamaProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: o.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	return resp.Embeddings, nil
}

func (o *OllamaProvider) Close() error {
	return nil
}
