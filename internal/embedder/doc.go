// Package embedder turns text into fixed-dimension vectors.
//
// Four providers implement the Embedder interface:
//
//   - local: offline feature-hashing embedder, deterministic, no network
//   - openai: OpenAI embeddings API (go-openai client)
//   - jina: Jina AI embeddings API over HTTP
//   - ollama: a local or remote Ollama server
//
// All providers share the same batching behaviour. An empty batch returns an
// empty response without calling the model, output order always matches input
// order, and every returned vector must have the configured dimension; a
// provider that disagrees fails with an error wrapping types.ErrConfiguration.
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "openai",
//	    APIKey:    os.Getenv("OPENAI_API_KEY"),
//	    Dimension: 384,
//	    MemoSize:  10000,
//	    Retry:     retry.DefaultConfig().WithAttempts(3),
//	    Logger:    logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
//
// Model failures wrap types.ErrModelInvocation. Retries are off by default
// (one attempt); when enabled each retry is logged at warn level.
//
// # Memo
//
// Providers can keep an in-memory LRU of recent vectors keyed by the SHA-256
// of the text. It is separate from the persistent chunk embedding cache and
// mainly helps with repeated queries.
//
// Use EmbedAll to embed more texts than fit in one batch.
package embedder
