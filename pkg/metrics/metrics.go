// Package metrics provides the centralized Prometheus registry reference
// for the MDS client. All metrics are defined in their respective packages
// (paging, aggregate, auth) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the MDS client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns an HTTP handler exposing every registered metric in the
// Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Paging Metrics (pkg/paging):
//   - mds_pages_total{resource} (Counter): Accepted (non-empty) pages by resource
//   - mds_page_items_total{resource} (Counter): Item records received by resource
//   - mds_page_fetch_duration_seconds{resource} (Histogram): Page fetch duration
//   - mds_transport_errors_total{resource} (Counter): Failed page fetches
//
// Aggregate Metrics (pkg/aggregate):
//   - mds_provider_fetches_total{provider, outcome} (Counter): Per-provider
//     fetches by outcome (success, error)
//
// Token Cache Metrics (pkg/auth):
//   - mds_token_cache_hits_total (Counter): Token cache hits
//   - mds_token_cache_misses_total (Counter): Token cache misses
//   - mds_token_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Items per second by resource
//   rate(mds_page_items_total[5m])
//
//   # Provider error rate
//   sum by (provider) (rate(mds_provider_fetches_total{outcome="error"}[5m]))
//
//   # P95 page fetch latency
//   histogram_quantile(0.95, rate(mds_page_fetch_duration_seconds_bucket[5m]))
//
//   # Token cache hit rate
//   rate(mds_token_cache_hits_total[5m]) /
//   (rate(mds_token_cache_hits_total[5m]) + rate(mds_token_cache_misses_total[5m]))
