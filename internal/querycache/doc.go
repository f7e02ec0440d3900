// Package querycache remembers the results of earlier searches and serves
// them again for queries whose embedding is close enough.
//
// Similarity is the cosine of the angle between query embeddings. Every
// lookup compares against all stored entries, oldest first, and keeps the
// first entry with the highest similarity; a lookup hits when that
// similarity is at least the threshold (0.85 by default).
//
// The cache is append-only. Identical queries recorded twice are both
// kept. Once the capacity is exceeded the oldest entries are evicted.
//
//	cache := querycache.New(querycache.NewFileStore("data/cache/query_cache.json"),
//	    querycache.WithLogger(logger))
//	cache.Load(ctx)
//
//	if results, sim, ok := cache.Find(queryVector); ok {
//	    logger.Debug().Float64("similarity", sim).Msg("cache hit")
//	    return results[:min(k, len(results))], nil
//	}
//
// Entries are persisted after every Record so that a restart keeps them.
package querycache
