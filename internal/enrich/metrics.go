package enrich

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mediahook"

var (
	enrichRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "requests_total",
			Help:      "Enrichment provider lookups by result",
		},
		[]string{"provider", "result"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "cache_lookups_total",
			Help:      "Metadata cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)
)

func recordEnrichRequest(provider, result string) {
	enrichRequests.WithLabelValues(provider, result).Inc()
}

func recordCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}
