package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_scans_total",
			Help: "Terminal check-in decisions per event",
		},
		[]string{"event_id", "status", "reason"},
	)

	credentialsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_credentials_issued_total",
			Help: "Credential issuance attempts by result",
		},
		[]string{"result"},
	)

	ledgerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketing_ledger_call_duration_seconds",
			Help:    "Latency of ledger reads and check-in transactions",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"op", "outcome"},
	)

	indexedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_indexed_events_total",
			Help: "Ticket usage and transfer logs processed by the indexer",
		},
		[]string{"kind"},
	)
)

func TrackScan(eventID, status, reason string) {
	scans.WithLabelValues(eventID, status, reason).Inc()
}

// TrackIssue records an issuance result: "issued", "cached" or an error class.
func TrackIssue(result string) {
	credentialsIssued.WithLabelValues(result).Inc()
}

func TrackLedgerCall(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ledgerCallDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

func TrackIndexedEvent(kind string) {
	indexedEvents.WithLabelValues(kind).Inc()
}
