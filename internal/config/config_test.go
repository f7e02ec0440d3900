package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semcache/pkg/types"
)

// clearEnv blanks every variable Load reads
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		ConfigFileEnv,
		"SEMCACHE_DATA_DIR", "SEMCACHE_RAW_DIR", "SEMCACHE_CACHE_DIR", "SEMCACHE_DB_PATH",
		"SEMCACHE_EMBEDDING_PROVIDER", "SEMCACHE_EMBEDDING_MODEL", "SEMCACHE_EMBEDDING_DIMENSION",
		"SEMCACHE_EMBEDDING_BASE_URL", "SEMCACHE_MEMO_SIZE",
		"SEMCACHE_RERANK_PROVIDER", "SEMCACHE_RERANK_MODEL", "SEMCACHE_RERANK_ENDPOINT", "SEMCACHE_RERANK_DEPTH",
		"SEMCACHE_CACHE_BACKEND", "SEMCACHE_QUERY_CACHE_THRESHOLD", "SEMCACHE_QUERY_CACHE_CAPACITY",
		"SEMCACHE_CHUNK_SIZE", "SEMCACHE_CHUNK_OVERLAP", "SEMCACHE_INGEST_WORKERS", "SEMCACHE_BATCH_SIZE",
		"SEMCACHE_REQUEST_TIMEOUT", "SEMCACHE_MODEL_WORKERS", "SEMCACHE_MODEL_MAX_RETRIES",
		"SEMCACHE_HTTP_ADDR", "SEMCACHE_LOG_LEVEL", "SEMCACHE_LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.EmbeddingProvider)
	assert.Equal(t, 384, cfg.EmbeddingDimension)
	assert.Equal(t, "local", cfg.RerankProvider)
	assert.Equal(t, 20, cfg.RerankDepth)
	assert.Equal(t, "json", cfg.CacheBackend)
	assert.Equal(t, 0.85, cfg.QueryCacheThreshold)
	assert.Equal(t, 1000, cfg.QueryCacheCapacity)
	assert.Equal(t, 256, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, runtime.NumCPU(), cfg.ModelWorkers)
	assert.Equal(t, 1, cfg.ModelMaxRetries)
	assert.Equal(t, ":8000", cfg.HTTPAddr)

	assert.Equal(t, filepath.Join("data", "raw"), cfg.RawPath())
	assert.Equal(t, filepath.Join("data", "cache"), cfg.CachePath())
	assert.Equal(t, filepath.Join("data", "semcache.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join("data", "cache", "embeddings_cache.json"), cfg.EmbeddingCacheFile())
	assert.Equal(t, filepath.Join("data", "cache", "query_cache.json"), cfg.QueryCacheFile())
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEMCACHE_DATA_DIR", "/srv/semcache")
	t.Setenv("SEMCACHE_EMBEDDING_PROVIDER", "openai")
	t.Setenv("SEMCACHE_EMBEDDING_DIMENSION", "1536")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SEMCACHE_QUERY_CACHE_THRESHOLD", "0.9")
	t.Setenv("SEMCACHE_REQUEST_TIMEOUT", "5s")
	t.Setenv("SEMCACHE_CACHE_BACKEND", "badger")
	t.Setenv("SEMCACHE_MODEL_WORKERS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.EmbeddingProvider)
	assert.Equal(t, 1536, cfg.EmbeddingDimension)
	assert.Equal(t, "sk-test", cfg.OpenAIKey)
	assert.Equal(t, 0.9, cfg.QueryCacheThreshold)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, runtime.NumCPU(), cfg.ModelWorkers, "unparsable values keep the previous setting")
	assert.Equal(t, filepath.Join("/srv/semcache", "cache", "badger"), cfg.BadgerDir())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "semcache.yaml")
	content := `
data_dir: /var/lib/semcache
raw_dir: /corpus
embedding_provider: ollama
embedding_dimension: 768
query_cache_threshold: 0.95
request_timeout: 10s
log_format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("SEMCACHE_EMBEDDING_DIMENSION", "1024")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.EmbeddingProvider)
	assert.Equal(t, 1024, cfg.EmbeddingDimension, "environment overrides the file")
	assert.Equal(t, 0.95, cfg.QueryCacheThreshold)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/corpus", cfg.RawPath())
	assert.Equal(t, filepath.Join("/var/lib/semcache", "semcache.db"), cfg.DatabasePath())
	assert.Equal(t, 256, cfg.ChunkSize, "unset keys keep defaults")
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.ErrorIs(t, err, types.ErrConfiguration)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: [1, 2\n"), 0o644))
	t.Setenv(ConfigFileEnv, path)
	_, err = Load()
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"threshold above one", func(c *Config) { c.QueryCacheThreshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.QueryCacheThreshold = -0.1 }},
		{"zero dimension", func(c *Config) { c.EmbeddingDimension = 0 }},
		{"overlap equals chunk size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"zero rerank depth", func(c *Config) { c.RerankDepth = 0 }},
		{"zero workers", func(c *Config) { c.ModelWorkers = 0 }},
		{"zero retries", func(c *Config) { c.ModelMaxRetries = 0 }},
		{"batch too large", func(c *Config) { c.BatchSize = 1000 }},
		{"unknown embedding provider", func(c *Config) { c.EmbeddingProvider = "cohere" }},
		{"unknown rerank provider", func(c *Config) { c.RerankProvider = "none" }},
		{"unknown cache backend", func(c *Config) { c.CacheBackend = "redis" }},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), types.ErrConfiguration)
		})
	}

	assert.NoError(t, Default().Validate())
}
