// Package api serves the retrieval engine over HTTP.
//
// Routes:
//
//	GET  /                 welcome message
//	POST /api/v1/search    {"query": "...", "k": 5, "alpha": 0.5, "rerank": true}
//	GET  /api/v1/health    corpus and cache statistics
//	GET  /metrics          Prometheus metrics
//
// Errors are returned as {"detail": "..."} with status 400 for invalid
// arguments, 504 when the request deadline expires, 503 when a model or
// index is unavailable and 500 otherwise. Every response carries an
// X-Request-ID header.
package api
