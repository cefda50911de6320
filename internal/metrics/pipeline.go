package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Item and call outcomes used as the status label.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusNotFound = "not_found"
)

// Pipeline Prometheus metrics.
var (
	BulkItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moviedex",
			Name:      "bulk_items_total",
			Help:      "Total number of bulk items by outcome",
		},
		[]string{"status"},
	)

	BulkRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "moviedex",
			Name:      "bulk_request_duration_seconds",
			Help:      "Bulk request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	UpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moviedex",
			Name:      "updates_total",
			Help:      "Total number of scripted appends by collection and outcome",
		},
		[]string{"collection", "status"},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moviedex",
			Name:      "search_requests_total",
			Help:      "Total number of search requests by outcome",
		},
		[]string{"status"},
	)
)

var registerPipeline sync.Once

// RegisterPipelineMetrics registers the ingest, update and search metrics.
// Safe to call more than once.
func RegisterPipelineMetrics() {
	registerPipeline.Do(func() {
		prometheus.MustRegister(BulkItemsTotal)
		prometheus.MustRegister(BulkRequestDuration)
		prometheus.MustRegister(UpdatesTotal)
		prometheus.MustRegister(SearchRequestsTotal)
	})
}
