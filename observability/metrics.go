// Package observability holds the Prometheus instruments for the memory
// daemon.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles all counters, gauges and histograms exposed on /metrics.
type Metrics struct {
	FactsRecorded  prometheus.Counter
	FactsDeleted   prometheus.Counter
	FactsPruned    prometheus.Counter
	Searches       *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	EmbedDuration  prometheus.Histogram
	EventClients   prometheus.Gauge
}

// New registers all instruments under the given namespace on the default
// registry.
func New(namespace string) *Metrics {
	return &Metrics{
		FactsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_recorded_total",
			Help:      "Facts stored since start.",
		}),
		FactsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_deleted_total",
			Help:      "Facts deleted by id since start.",
		}),
		FactsPruned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_pruned_total",
			Help:      "Expired facts removed by prune runs.",
		}),
		Searches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Search requests by outcome.",
		}, []string{"outcome"}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency including embedding.",
			Buckets:   prometheus.DefBuckets,
		}),
		EmbedDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embed_duration_seconds",
			Help:      "Embedding provider latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		EventClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_clients",
			Help:      "Connected websocket event subscribers.",
		}),
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
