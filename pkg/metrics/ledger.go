package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records outcomes and latency for ledger writes.
type LedgerMetrics struct {
	applies  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	applies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_applies_total",
		Help: "Ledger apply attempts partitioned by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_apply_duration_seconds",
		Help:    "Duration of ledger apply operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	reg.MustRegister(applies, duration)
	return &LedgerMetrics{
		applies:  applies,
		duration: duration,
	}
}

// IncApply increments the apply counter for the given outcome.
func (l *LedgerMetrics) IncApply(outcome string) {
	if l == nil || l.applies == nil {
		return
	}
	l.applies.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveApplyDuration records how long an apply took for the transaction type.
func (l *LedgerMetrics) ObserveApplyDuration(txType string, duration time.Duration) {
	if l == nil || l.duration == nil {
		return
	}
	l.duration.WithLabelValues(normalizeLabel(txType)).Observe(duration.Seconds())
}
