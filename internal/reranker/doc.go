// Package reranker scores query/document pairs for the final ranking pass.
//
// Two implementations exist. Local runs offline and blends string
// similarities from go-edlib; Jina calls the hosted Jina AI cross-encoder.
// Both return exactly one score per document in document order.
package reranker
