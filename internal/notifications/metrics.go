package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mediahook"

var (
	webhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_received_total",
			Help:      "Inbound webhooks by detected source and outcome",
		},
		[]string{"source", "result"},
	)

	queueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_size",
			Help:      "Number of messages waiting for the next scheduler run",
		},
	)

	queueDrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_drained_total",
			Help:      "Total messages taken from the queue by the scheduler",
		},
	)

	deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_total",
			Help:      "Delivery attempts by platform, mode and status",
		},
		[]string{"platform", "mode", "status"},
	)

	deliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time to deliver one message or bundle",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"platform", "mode"},
	)
)

// Delivery modes.
const (
	modeIndividual = "individual"
	modeBundle     = "bundle"
)

func recordReceived(source, result string) {
	webhooksReceived.WithLabelValues(source, result).Inc()
}

// recordDelivery records the outcome and duration of one send call.
func recordDelivery(platform, mode string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "failed"
		if IsRetryable(err) {
			status = "failed_retryable"
		}
	}
	deliveries.WithLabelValues(platform, mode, status).Inc()
	deliveryDuration.WithLabelValues(platform, mode).Observe(duration.Seconds())
}

func recordDrained(count int) {
	queueDrained.Add(float64(count))
}

// RecordQueueSize updates the queue size gauge.
func RecordQueueSize(n int) {
	queueSize.Set(float64(n))
}
