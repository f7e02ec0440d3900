package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/semcache/internal/retry"
	"github.com/dshills/semcache/pkg/types"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = fmt.Errorf("%w: no embedding provider credentials", types.ErrConfiguration)
	ErrUnknownProvider   = fmt.Errorf("%w: unknown embedding provider", types.ErrConfiguration)
)

// Embedding is one vector produced by a provider
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // SHA-256 of the embedded text
}

// EmbeddingRequest asks for the embedding of a single text
type EmbeddingRequest struct {
	Text string
}

// BatchEmbeddingRequest asks for embeddings of several texts in one call
type BatchEmbeddingRequest struct {
	Texts []string
}

// BatchEmbeddingResponse holds one embedding per requested text, in request order
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder maps text to fixed-dimension vectors
type Embedder interface {
	// GenerateEmbedding embeds a single text
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch embeds several texts. An empty batch yields an empty response.
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension returns the length of every vector this embedder produces
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// Memo is an in-memory LRU of vectors keyed by text hash. It lives in front of
// the provider so repeated queries in one process skip the model call.
type Memo struct {
	cache *lru.Cache[string, []float32]
}

// NewMemo creates a memo holding up to size vectors (10k when size <= 0)
func NewMemo(size int) *Memo {
	if size <= 0 {
		size = 10000
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Memo{cache: cache}
}

// Get returns a copy of the vector memoized for hash
func (m *Memo) Get(hash string) ([]float32, bool) {
	v, ok := m.cache.Get(hash)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

// Add memoizes a copy of vector under hash
func (m *Memo) Add(hash string, vector []float32) {
	m.cache.Add(hash, append([]float32(nil), vector...))
}

// Len returns the number of memoized vectors
func (m *Memo) Len() int {
	return m.cache.Len()
}

// Purge empties the memo
func (m *Memo) Purge() {
	m.cache.Purge()
}

// ComputeHash computes the SHA-256 hash of text
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateRequest validates an embedding request
func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest rejects empty texts and batches above MaxBatchSize
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) > MaxBatchSize {
		return fmt.Errorf("%w: %d texts, max %d allowed", ErrBatchTooLarge, len(req.Texts), MaxBatchSize)
	}
	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// callFunc embeds texts with a single provider call
type callFunc func(ctx context.Context, texts []string) ([][]float32, error)

// base holds what every provider shares: identity, memo and retry policy
type base struct {
	provider string
	model    string
	dim      int
	memo     *Memo
	retry    retry.Config
	logger   zerolog.Logger
	call     callFunc
}

func newBase(provider, model string, dim int, memo *Memo) base {
	return base{
		provider: provider,
		model:    model,
		dim:      dim,
		memo:     memo,
		retry:    retry.DefaultConfig(),
		logger:   zerolog.Nop(),
	}
}

// configure applies the retry policy and logger shared by all providers
func (b *base) configure(cfg retry.Config, logger zerolog.Logger) {
	b.retry = cfg
	b.logger = logger.With().Str("component", "embedder").Str("provider", b.provider).Logger()
}

func (b *base) Dimension() int   { return b.dim }
func (b *base) Provider() string { return b.provider }
func (b *base) Model() string    { return b.model }

func (b *base) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := b.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (b *base) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	resp := &BatchEmbeddingResponse{
		Embeddings: make([]*Embedding, len(req.Texts)),
		Provider:   b.provider,
		Model:      b.model,
	}

	hashes := make([]string, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		hashes[i] = ComputeHash(text)
		if b.memo != nil {
			if v, ok := b.memo.Get(hashes[i]); ok {
				resp.Embeddings[i] = b.embedding(v, hashes[i])
				continue
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return resp, nil
	}

	texts := make([]string, len(missing))
	for j, i := range missing {
		texts[j] = req.Texts[i]
	}

	vectors, err := retry.Do(ctx, b.retry, b.logger, func() ([][]float32, error) {
		return b.call(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrModelInvocation, b.provider, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %s returned %d embeddings for %d texts",
			types.ErrModelInvocation, b.provider, len(vectors), len(texts))
	}

	for j, i := range missing {
		if len(vectors[j]) != b.dim {
			return nil, fmt.Errorf("%w: %s returned dimension %d, configured %d",
				types.ErrConfiguration, b.provider, len(vectors[j]), b.dim)
		}
		if b.memo != nil {
			b.memo.Add(hashes[i], vectors[j])
		}
		resp.Embeddings[i] = b.embedding(vectors[j], hashes[i])
	}
	return resp, nil
}

func (b *base) embedding(v []float32, hash string) *Embedding {
	return &Embedding{
		Vector:    v,
		Dimension: len(v),
		Provider:  b.provider,
		Model:     b.model,
		Hash:      hash,
	}
}

// EmbedAll embeds any number of texts in batches of batchSize, preserving order
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = DefaultBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		resp, err := e.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: texts[start:end]})
		if err != nil {
			return nil, fmt.Errorf("embed texts %d-%d: %w", start, end-1, err)
		}
		for _, emb := range resp.Embeddings {
			out = append(out, emb.Vector)
		}
	}
	return out, nil
}
