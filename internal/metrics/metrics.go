// Package metrics holds the Prometheus collectors of the pipeline. They are
// registered with the default registry and served on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stencil"

var (
	// interpreterCalls counts calls to the interpreter by kind
	// (structure, data, text, associations) and status (ok, error).
	interpreterCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "interpret",
		Name:      "calls_total",
		Help:      "Interpreter calls by kind and status",
	}, []string{"kind", "status"})

	interpreterLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "interpret",
		Name:      "latency_seconds",
		Help:      "Interpreter call latency in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
	}, []string{"kind"})

	// cacheLookups counts content-addressed cache lookups by cache
	// (node, prompt) and result (hit, miss).
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "interpret",
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by cache and result",
	}, []string{"cache", "result"})

	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "interpret",
		Name:      "resolutions_total",
		Help:      "Basis nodes settled by resolution",
	}, []string{"resolution"})

	learnedDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learn",
		Name:      "documents_total",
		Help:      "Documents absorbed into templates",
	}, []string{"template"})

	graftedNodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learn",
		Name:      "grafted_nodes_total",
		Help:      "Basis nodes added by absorption",
	}, []string{"template"})

	harvestedNodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "harvest",
		Name:      "content_nodes_total",
		Help:      "Content nodes produced by harvests",
	}, []string{"tree"})
)

// RecordInterpreterCall records one interpreter call.
func RecordInterpreterCall(kind string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	interpreterCalls.WithLabelValues(kind, status).Inc()
	interpreterLatency.WithLabelValues(kind).Observe(d.Seconds())
}

func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(cache, result).Inc()
}

func RecordResolution(resolution string) {
	resolutions.WithLabelValues(resolution).Inc()
}

func RecordLearned(template string, grafted int) {
	learnedDocuments.WithLabelValues(template).Inc()
	graftedNodes.WithLabelValues(template).Add(float64(grafted))
}

// RecordHarvested records the size of a harvested tree, "content" or
// "related".
func RecordHarvested(tree string, nodes int) {
	harvestedNodes.WithLabelValues(tree).Add(float64(nodes))
}
