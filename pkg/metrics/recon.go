package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconMetrics records balance sweep outcomes and detected drift.
type ReconMetrics struct {
	runs          *prometheus.CounterVec
	discrepancies prometheus.Counter
	duration      prometheus.Histogram
}

// NewReconMetrics registers the reconciliation metrics on the provided registerer.
func NewReconMetrics(reg prometheus.Registerer) *ReconMetrics {
	if reg == nil {
		return &ReconMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recon_runs_total",
		Help: "Reconciliation sweeps partitioned by final status.",
	}, []string{"status"})
	discrepancies := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recon_discrepancies_total",
		Help: "Wallets whose cached balance drifted from the recomputed sum.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recon_run_duration_seconds",
		Help:    "Duration of full reconciliation sweeps in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(runs, discrepancies, duration)
	return &ReconMetrics{
		runs:          runs,
		discrepancies: discrepancies,
		duration:      duration,
	}
}

// IncRun increments the sweep counter for the given final status.
func (r *ReconMetrics) IncRun(status string) {
	if r == nil || r.runs == nil {
		return
	}
	r.runs.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncDiscrepancy counts one drifted wallet.
func (r *ReconMetrics) IncDiscrepancy() {
	if r == nil || r.discrepancies == nil {
		return
	}
	r.discrepancies.Inc()
}

// ObserveRunDuration records how long one sweep took.
func (r *ReconMetrics) ObserveRunDuration(duration time.Duration) {
	if r == nil || r.duration == nil {
		return
	}
	r.duration.Observe(duration.Seconds())
}
