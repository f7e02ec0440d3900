// Package searcher implements hybrid retrieval over a corpus snapshot,
// fusing dense vector similarity with BM25 keyword relevance.
//
// # Basic Usage
//
//	corpus, err := searcher.NewCorpus(chunks, vectors, 384)
//	s := searcher.New(corpus, emb,
//	    searcher.WithReranker(rr),
//	    searcher.WithQueryCache(cache),
//	)
//
//	results, err := s.Search(ctx, types.SearchRequest{
//	    Query: "how do cats sleep",
//	    K:     5,
//	    Alpha: 0.5,
//	})
//
// # Pipeline
//
// A search embeds the query and first consults the semantic query cache: a
// previously answered query whose embedding has cosine similarity of at
// least the cache threshold returns its stored results without touching the
// indices. On a miss:
//
//  1. The vector index and BM25 run concurrently, each returning its top
//     candidates (2k, or the rerank depth when reranking).
//  2. BM25 scores are divided by the highest score in the corpus.
//  3. Candidates are fused as alpha*vector + (1-alpha)*bm25 and annotated
//     with keyword overlap and a short explanation.
//  4. When reranking, the top candidates are rescored by the cross-encoder
//     and the rerank score replaces the fused score.
//
// Results are ordered by score descending with ties broken by chunk ID, so
// equal inputs always produce equal output.
//
// # Errors
//
// Invalid requests fail with types.ErrInvalidArgument before any model call.
// A failing model or index call fails the whole search with a
// *types.RetrievalError naming the stage; there are no partial results.
package searcher
