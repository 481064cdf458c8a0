// Package metrics exposes the worker's Prometheus counters: fetched, failed,
// dropped, duplicate-content and recovered, per the error-handling design's
// required metrics surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the worker-wide Prometheus counter vectors. All counters are
// labeled by worker_id so a shared registry (or a pushgateway) can attribute
// activity across peers.
type Metrics struct {
	Fetched          *prometheus.CounterVec
	Failed           *prometheus.CounterVec
	Dropped          *prometheus.CounterVec
	DuplicateContent prometheus.Counter
	Recovered        prometheus.Counter
}

// New registers the worker's counters against reg and returns the handle.
// Pass prometheus.NewRegistry() in tests to avoid collisions with the global
// default registry across parallel test runs.
func New(reg prometheus.Registerer, workerID string) *Metrics {
	factory := promauto.With(reg)

	constLabels := prometheus.Labels{"worker_id": workerID}

	return &Metrics{
		Fetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "crawld",
			Name:        "pages_fetched_total",
			Help:        "Pages fetched, partitioned by HTTP status class.",
			ConstLabels: constLabels,
		}, []string{"status_class"}),
		Failed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "crawld",
			Name:        "fetch_failures_total",
			Help:        "Fetch attempts that ended in a transient or terminal error.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "crawld",
			Name:        "urls_dropped_total",
			Help:        "URLs dropped without being persisted (robots disallow, not found, unhandled status, bad redirect).",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		DuplicateContent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "crawld",
			Name:        "duplicate_content_total",
			Help:        "Pages whose content hash already existed in the content collection.",
			ConstLabels: constLabels,
		}),
		Recovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "crawld",
			Name:        "stale_claims_recovered_total",
			Help:        "In-flight claims returned to the frontier by the stale-claim sweep.",
			ConstLabels: constLabels,
		}),
	}
}
