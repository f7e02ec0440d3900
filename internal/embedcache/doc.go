// Package embedcache is a content-addressed cache of chunk embeddings.
//
// An entry maps a chunk ID to the vector computed for it and the SHA-256
// fingerprint of the text it was computed from. Lookup only returns the vector
// while the chunk's current content still hashes to that fingerprint, so an
// edited chunk is re-embedded on the next ingest and an unchanged one is not.
//
//	cache := embedcache.New(embedcache.NewFileStore("data/cache/embeddings_cache.json"), logger)
//	cache.Load(ctx)
//
//	vectors, missing := cache.Partition(chunks)
//	// embed chunks[missing[i]] ...
//	cache.Insert(chunk.ID, chunk.Content, vector)
//	if err := cache.Persist(ctx); err != nil {
//	    logger.Warn().Err(err).Msg("persist failed")
//	}
//
// Three stores are available: a JSON companion file, a table in the SQLite
// corpus database, and an embedded Badger database.
package embedcache
