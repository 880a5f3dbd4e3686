package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	passTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partywatch_scan_pass_total",
			Help: "Completed scan passes by result.",
		},
		[]string{"result"},
	)
	candidatesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "partywatch_scan_candidates_total",
			Help: "Candidate nodes loaded across all passes.",
		},
	)
	lastPassTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "partywatch_scan_last_pass_timestamp_seconds",
			Help: "Unix time of the last finished scan pass.",
		},
	)
)
