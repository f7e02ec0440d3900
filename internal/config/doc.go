// Package config loads engine settings.
//
// Values are resolved in order: built-in defaults, the YAML file named by
// SEMCACHE_CONFIG, SEMCACHE_* environment variables (plus OPENAI_API_KEY,
// JINA_API_KEY and OLLAMA_HOST), and finally command-line flags applied by
// the CLI before calling Validate.
//
// Example YAML:
//
//	data_dir: /var/lib/semcache
//	embedding_provider: openai
//	embedding_dimension: 1536
//	query_cache_threshold: 0.9
//	request_timeout: 10s
package config
