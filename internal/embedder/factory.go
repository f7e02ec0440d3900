package embedder

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/semcache/internal/retry"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string // Empty selects the provider default
	APIKey    string
	BaseURL   string // Endpoint override: OpenAI base URL, Jina endpoint or Ollama host
	Dimension int
	MemoSize  int // LRU memo entries; 0 disables the memo
	Retry     retry.Config
	Logger    zerolog.Logger
}

// New creates the embedder named by cfg.Provider
func New(cfg Config) (Embedder, error) {
	var memo *Memo
	if cfg.MemoSize > 0 {
		memo = NewMemo(cfg.MemoSize)
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = LocalDimension
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderLocal, "":
		p := NewLocalProvider(dim, memo)
		p.configure(cfg.Retry, cfg.Logger)
		return p, nil
	case ProviderOpenAI:
		p, err := NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, dim, memo)
		if err != nil {
			return nil, err
		}
		p.configure(cfg.Retry, cfg.Logger)
		return p, nil
	case ProviderJina:
		p, err := NewJinaProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, dim, memo)
		if err != nil {
			return nil, err
		}
		p.configure(cfg.Retry, cfg.Logger)
		return p, nil
	case ProviderOllama:
		p, err := NewOllamaProvider(cfg.BaseURL, cfg.Model, dim, memo)
		if err != nil {
			return nil, err
		}
		p.configure(cfg.Retry, cfg.Logger)
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
