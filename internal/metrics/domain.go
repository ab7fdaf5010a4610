package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and ingestion Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callsight",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"mode", "status"},
	)

	SearchResultsReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "callsight",
			Name:      "search_results_returned",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		},
		[]string{"mode"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callsight",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"model", "type"},
	)

	IngestRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callsight",
			Name:      "ingest_records_total",
			Help:      "Records processed by the ingestion pipeline",
		},
		[]string{"outcome"}, // "written" / "dropped"
	)

	IngestBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "callsight",
			Name:      "ingest_batches_total",
			Help:      "Bulk-write batches submitted to the store",
		},
	)
)

var domainMetricsRegistered bool

// RegisterDomainMetrics registers the search/ingest metrics. Must be called once from main.
func RegisterDomainMetrics() {
	if domainMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchResultsReturned)
	prometheus.MustRegister(EmbeddingTokensTotal)
	prometheus.MustRegister(IngestRecordsTotal)
	prometheus.MustRegister(IngestBatchesTotal)
	domainMetricsRegistered = true
}
