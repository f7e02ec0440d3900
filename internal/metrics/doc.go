// Package metrics exposes Prometheus counters and histograms for searches,
// model calls, the query cache and ingests. Every method is safe to call on
// a nil *Metrics, so components can take one without checking.
package metrics
