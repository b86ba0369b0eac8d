package orchestrator

import (
	"time"

	"github.com/poiesic/portfolioqa/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the orchestrator's prometheus collectors. Each instance owns
// its registry. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal      *prometheus.CounterVec
	cacheHits         prometheus.Counter
	retrievalDuration *prometheus.HistogramVec
	queryDuration     prometheus.Histogram
}

// NewMetrics creates collectors under namespace on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		queriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of queries by route and outcome",
			},
			[]string{"route", "outcome"},
		),
		cacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of queries answered from the result cache",
			},
		),
		retrievalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retrieval_duration_seconds",
				Help:      "Retrieval path duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"path"},
		),
		queryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "End to end query duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) recordQuery(route core.Route, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "none"
	}
	m.queriesTotal.WithLabelValues(string(route), outcome).Inc()
	m.queryDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) recordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) recordRetrieval(path core.SourceType, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.retrievalDuration.WithLabelValues(string(path)).Observe(elapsed.Seconds())
}
