package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SettlementMetrics exposes the engine's operational counters. All record
// methods are nil-safe so wiring metrics stays optional in tests and tooling.
type SettlementMetrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	payoutsTotal   *prometheus.CounterVec
	transfersTotal *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metric family on reg.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	factory := promauto.With(reg)
	return &SettlementMetrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rubhub",
			Subsystem: "settlement",
			Name:      "runs_total",
			Help:      "Settlement runs by outcome.",
		}, []string{"outcome"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rubhub",
			Subsystem: "settlement",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of settlement runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		payoutsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rubhub",
			Subsystem: "settlement",
			Name:      "payouts_total",
			Help:      "Per-booking payout outcomes.",
		}, []string{"result"}),
		transfersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rubhub",
			Subsystem: "ledger",
			Name:      "transfers_total",
			Help:      "Ledger transfers by kind and status.",
		}, []string{"kind", "status"}),
	}
}

// RecordRun counts a finished run and its duration
func (m *SettlementMetrics) RecordRun(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

// RecordPayout counts one booking's payout outcome
func (m *SettlementMetrics) RecordPayout(result string) {
	if m == nil {
		return
	}
	m.payoutsTotal.WithLabelValues(result).Inc()
}

// RecordTransfer counts a ledger transfer attempt
func (m *SettlementMetrics) RecordTransfer(kind, status string) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(kind, status).Inc()
}
