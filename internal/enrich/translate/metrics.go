package translate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var translations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mediahook",
		Subsystem: "translate",
		Name:      "requests_total",
		Help:      "Overview translation attempts by service and result",
	},
	[]string{"service", "result"},
)

func recordTranslation(service, result string) {
	translations.WithLabelValues(service, result).Inc()
}
