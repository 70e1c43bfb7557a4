package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_purchases_total",
			Help: "Purchase attempts by payment method and outcome",
		},
		[]string{"method", "outcome"},
	)

	reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_payment_reconciliations_total",
			Help: "Provider statuses applied to tickets",
		},
		[]string{"source", "status", "changed"},
	)

	entryScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_entry_scans_total",
			Help: "Venue entry validations by outcome",
		},
		[]string{"outcome"},
	)

	providerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketing_provider_request_duration_seconds",
			Help:    "Latency of payment provider calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"op", "provider", "result"},
	)

	sseSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticketing_payment_stream_subscribers",
			Help: "Open payment status streams",
		},
	)
)

func RecordPurchase(method, outcome string) {
	purchases.WithLabelValues(method, outcome).Inc()
}

func RecordReconciliation(source, status string, changed bool) {
	c := "false"
	if changed {
		c = "true"
	}
	reconciliations.WithLabelValues(source, status, c).Inc()
}

func RecordEntryScan(outcome string) {
	entryScans.WithLabelValues(outcome).Inc()
}

func ObserveProviderCall(op, provider string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	providerLatency.WithLabelValues(op, provider, result).Observe(time.Since(start).Seconds())
}

func StreamOpened() { sseSubscribers.Inc() }
func StreamClosed() { sseSubscribers.Dec() }

func Handler() http.Handler {
	return promhttp.Handler()
}
