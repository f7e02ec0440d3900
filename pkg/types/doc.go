// Package types provides shared type definitions for the semcache retrieval engine.
//
// This package defines the domain types used across components: chunks produced
// by ingestion, search requests, ranked results and the error taxonomy.
//
// # Core Types
//
// Chunk is the unit of retrieval, identified by "<filename>_chunk_<ordinal>":
//
//	chunk := types.Chunk{
//	    ID:             types.ChunkID("space.txt", 0),
//	    SourceFilename: "space.txt",
//	    Content:        "stars are suns",
//	}
//
// RankedResult carries every score the pipeline computed for a chunk, so a
// caller can see why it ranked where it did:
//
//	for _, r := range results {
//	    fmt.Printf("%s fused=%.3f vector=%.3f bm25=%.3f overlap=%.2f\n",
//	        r.ChunkID, r.FusedScore, r.VectorScore, r.LexicalScore, r.OverlapScore)
//	}
//
// # Errors
//
// Model and index failures during a search surface as a *RetrievalError, which
// matches ErrRetrievalUnavailable as well as the underlying cause:
//
//	if errors.Is(err, types.ErrRetrievalUnavailable) {
//	    // model or index down, retry later
//	}
//	if errors.Is(err, types.ErrInvalidArgument) {
//	    // caller bug, do not retry
//	}
package types
