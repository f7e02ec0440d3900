// Package engine assembles the retrieval engine from configuration.
//
// An Engine is the single context object shared by every surface. Building
// one opens the corpus database, constructs the embedding and rerank
// providers, loads the embedding and query caches from their stores and
// builds the vector and BM25 indices from the stored snapshot:
//
//	eng, err := engine.New(ctx, cfg, engine.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	stats, err := eng.Ingest(ctx, "")
//	results, err := eng.Search(ctx, types.SearchRequest{Query: "q", K: 5, Alpha: 0.5})
//
// Ingest replaces the snapshot wholesale. Searches running during an ingest
// finish against the previous snapshot; the query cache is cleared once the
// new snapshot is in place.
package engine
