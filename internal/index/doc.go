// Package index holds the two in-memory indices the retrieval pipeline
// searches: an exact vector index and a BM25 lexical index.
//
// Both are built once from a corpus snapshot and are read-only afterwards,
// so they can be shared by concurrent searches without locking. Positions
// returned by either index refer to the order of the chunks they were built
// from.
//
//	vec, err := index.NewFlatIndex(384, vectors)
//	hits, err := vec.Search(index.Normalize(queryVector), 20)
//
//	bm := index.NewBM25(tokenized)
//	scores := bm.Scores(index.Tokenize(query))
//	top := index.TopN(scores, 20)
package index
