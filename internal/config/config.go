package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/dshills/semcache/internal/embedcache"
	"github.com/dshills/semcache/internal/embedder"
	"github.com/dshills/semcache/internal/reranker"
	"github.com/dshills/semcache/pkg/types"
)

// ConfigFileEnv names the variable holding an optional YAML config path
const ConfigFileEnv = "SEMCACHE_CONFIG"

// Config holds every setting of the engine and its surfaces
type Config struct {
	// Locations
	DataDir  string `yaml:"data_dir"`
	RawDir   string `yaml:"raw_dir"`   // Default: <data_dir>/raw
	CacheDir string `yaml:"cache_dir"` // Default: <data_dir>/cache
	DBPath   string `yaml:"db_path"`   // Default: <data_dir>/semcache.db

	// Embedding
	EmbeddingProvider  string `yaml:"embedding_provider"`
	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingDimension int    `yaml:"embedding_dimension"`
	EmbeddingBaseURL   string `yaml:"embedding_base_url"`
	OpenAIKey          string `yaml:"openai_api_key"`
	JinaKey            string `yaml:"jina_api_key"`
	OllamaHost         string `yaml:"ollama_host"`
	MemoSize           int    `yaml:"memo_size"`

	// Reranking
	RerankProvider string `yaml:"rerank_provider"`
	RerankModel    string `yaml:"rerank_model"`
	RerankEndpoint string `yaml:"rerank_endpoint"`
	RerankDepth    int    `yaml:"rerank_depth"`

	// Caches
	CacheBackend        string  `yaml:"cache_backend"`
	QueryCacheThreshold float64 `yaml:"query_cache_threshold"`
	QueryCacheCapacity  int     `yaml:"query_cache_capacity"`

	// Ingestion
	ChunkSize     int `yaml:"chunk_size"`
	ChunkOverlap  int `yaml:"chunk_overlap"`
	IngestWorkers int `yaml:"ingest_workers"`
	BatchSize     int `yaml:"batch_size"`

	// Runtime
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ModelWorkers    int           `yaml:"model_workers"`
	ModelMaxRetries int           `yaml:"model_max_retries"`

	// Surfaces
	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir: "data",

		EmbeddingProvider:  embedder.ProviderLocal,
		EmbeddingDimension: embedder.LocalDimension,
		MemoSize:           1000,

		RerankProvider: reranker.ProviderLocal,
		RerankDepth:    20,

		CacheBackend:        embedcache.BackendJSON,
		QueryCacheThreshold: 0.85,
		QueryCacheCapacity:  1000,

		ChunkSize:     256,
		ChunkOverlap:  50,
		IngestWorkers: 4,
		BatchSize:     embedder.DefaultBatchSize,

		RequestTimeout:  30 * time.Second,
		ModelWorkers:    runtime.NumCPU(),
		ModelMaxRetries: 1,

		HTTPAddr:  ":8000",
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load builds the configuration from defaults, the YAML file named by
// SEMCACHE_CONFIG (if any) and the environment, in that order, then validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// LoadFile overlays the settings present in a YAML file
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: config file %s not found", types.ErrConfiguration, path)
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parse %s: %v", types.ErrConfiguration, path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("SEMCACHE_DATA_DIR", c.DataDir)
	c.RawDir = getEnv("SEMCACHE_RAW_DIR", c.RawDir)
	c.CacheDir = getEnv("SEMCACHE_CACHE_DIR", c.CacheDir)
	c.DBPath = getEnv("SEMCACHE_DB_PATH", c.DBPath)

	c.EmbeddingProvider = getEnv("SEMCACHE_EMBEDDING_PROVIDER", c.EmbeddingProvider)
	c.EmbeddingModel = getEnv("SEMCACHE_EMBEDDING_MODEL", c.EmbeddingModel)
	c.EmbeddingDimension = getEnvInt("SEMCACHE_EMBEDDING_DIMENSION", c.EmbeddingDimension)
	c.EmbeddingBaseURL = getEnv("SEMCACHE_EMBEDDING_BASE_URL", c.EmbeddingBaseURL)
	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.JinaKey = getEnv("JINA_API_KEY", c.JinaKey)
	c.OllamaHost = getEnv("OLLAMA_HOST", c.OllamaHost)
	c.MemoSize = getEnvInt("SEMCACHE_MEMO_SIZE", c.MemoSize)

	c.RerankProvider = getEnv("SEMCACHE_RERANK_PROVIDER", c.RerankProvider)
	c.RerankModel = getEnv("SEMCACHE_RERANK_MODEL", c.RerankModel)
	c.RerankEndpoint = getEnv("SEMCACHE_RERANK_ENDPOINT", c.RerankEndpoint)
	c.RerankDepth = getEnvInt("SEMCACHE_RERANK_DEPTH", c.RerankDepth)

	c.CacheBackend = getEnv("SEMCACHE_CACHE_BACKEND", c.CacheBackend)
	c.QueryCacheThreshold = getEnvFloat("SEMCACHE_QUERY_CACHE_THRESHOLD", c.QueryCacheThreshold)
	c.QueryCacheCapacity = getEnvInt("SEMCACHE_QUERY_CACHE_CAPACITY", c.QueryCacheCapacity)

	c.ChunkSize = getEnvInt("SEMCACHE_CHUNK_SIZE", c.ChunkSize)
	c.ChunkOverlap = getEnvInt("SEMCACHE_CHUNK_OVERLAP", c.ChunkOverlap)
	c.IngestWorkers = getEnvInt("SEMCACHE_INGEST_WORKERS", c.IngestWorkers)
	c.BatchSize = getEnvInt("SEMCACHE_BATCH_SIZE", c.BatchSize)

	c.RequestTimeout = getEnvDuration("SEMCACHE_REQUEST_TIMEOUT", c.RequestTimeout)
	c.ModelWorkers = getEnvInt("SEMCACHE_MODEL_WORKERS", c.ModelWorkers)
	c.ModelMaxRetries = getEnvInt("SEMCACHE_MODEL_MAX_RETRIES", c.ModelMaxRetries)

	c.HTTPAddr = getEnv("SEMCACHE_HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = getEnv("SEMCACHE_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("SEMCACHE_LOG_FORMAT", c.LogFormat)
}

// Validate rejects settings the engine cannot start with
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.EmbeddingDimension > 0, "embedding_dimension must be positive, got %d", c.EmbeddingDimension)
	check(c.QueryCacheThreshold >= 0 && c.QueryCacheThreshold <= 1,
		"query_cache_threshold must be 0-1, got %v", c.QueryCacheThreshold)
	check(c.ChunkSize > 0, "chunk_size must be positive, got %d", c.ChunkSize)
	check(c.ChunkOverlap >= 0 && c.ChunkOverlap < c.ChunkSize,
		"chunk_overlap must be in [0, chunk_size), got %d", c.ChunkOverlap)
	check(c.RerankDepth > 0, "rerank_depth must be positive, got %d", c.RerankDepth)
	check(c.RequestTimeout >= 0, "request_timeout must not be negative, got %v", c.RequestTimeout)
	check(c.ModelWorkers > 0, "model_workers must be positive, got %d", c.ModelWorkers)
	check(c.ModelMaxRetries >= 1 && c.ModelMaxRetries <= 10,
		"model_max_retries must be 1-10, got %d", c.ModelMaxRetries)
	check(c.IngestWorkers > 0, "ingest_workers must be positive, got %d", c.IngestWorkers)
	check(c.BatchSize > 0 && c.BatchSize <= embedder.MaxBatchSize,
		"batch_size must be 1-%d, got %d", embedder.MaxBatchSize, c.BatchSize)

	switch strings.ToLower(c.EmbeddingProvider) {
	case embedder.ProviderLocal, embedder.ProviderOpenAI, embedder.ProviderJina, embedder.ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("unknown embedding_provider %q", c.EmbeddingProvider))
	}

	switch strings.ToLower(c.RerankProvider) {
	case reranker.ProviderLocal, reranker.ProviderJina:
	default:
		errs = append(errs, fmt.Errorf("unknown rerank_provider %q", c.RerankProvider))
	}

	switch c.CacheBackend {
	case embedcache.BackendJSON, embedcache.BackendSQLite, embedcache.BackendBadger:
	default:
		errs = append(errs, fmt.Errorf("unknown cache_backend %q", c.CacheBackend))
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// RawPath is the directory ingested by default
func (c *Config) RawPath() string {
	if c.RawDir != "" {
		return c.RawDir
	}
	return filepath.Join(c.DataDir, "raw")
}

// CachePath is the directory holding cache companion files
func (c *Config) CachePath() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return filepath.Join(c.DataDir, "cache")
}

// DatabasePath is the SQLite corpus database
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "semcache.db")
}

// EmbeddingCacheFile is the JSON embedding cache companion file
func (c *Config) EmbeddingCacheFile() string {
	return filepath.Join(c.CachePath(), "embeddings_cache.json")
}

// QueryCacheFile is the JSON query cache companion file
func (c *Config) QueryCacheFile() string {
	return filepath.Join(c.CachePath(), "query_cache.json")
}

// BadgerDir is the Badger database directory for the badger cache backend
func (c *Config) BadgerDir() string {
	return filepath.Join(c.CachePath(), "badger")
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
