package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partywatch_dispatch_send_total",
			Help: "Webhook send attempts by group and status.",
		},
		[]string{"group", "status"},
	)
	sendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partywatch_dispatch_send_duration_seconds",
			Help:    "Duration of webhook HTTP requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
	flushFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "partywatch_dispatch_flush_failures_total",
			Help: "Failed writes of the notified-ID set after a dispatch batch.",
		},
	)
)
