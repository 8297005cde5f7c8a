package dedup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mediahook"

var (
	dedupEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "entries",
			Help:      "Number of live fingerprints in the duplicate cache",
		},
	)

	dedupSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "swept_total",
			Help:      "Total expired fingerprints removed by the sweeper",
		},
	)
)

// RecordEntries updates the live entry gauge.
func RecordEntries(n int) {
	dedupEntries.Set(float64(n))
}

func recordSwept(n int) {
	dedupSwept.Add(float64(n))
}
