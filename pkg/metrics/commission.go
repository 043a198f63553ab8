package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommissionMetrics records calculator decisions and distribution latency.
type CommissionMetrics struct {
	proposals *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewCommissionMetrics registers the commission metrics on the provided registerer.
func NewCommissionMetrics(reg prometheus.Registerer) *CommissionMetrics {
	if reg == nil {
		return &CommissionMetrics{}
	}
	proposals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_proposals_total",
		Help: "Per-level calculator decisions partitioned by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "commission_distribute_duration_seconds",
		Help:    "Duration of full distribution runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	reg.MustRegister(proposals, duration)
	return &CommissionMetrics{
		proposals: proposals,
		duration:  duration,
	}
}

// IncProposal increments the proposal counter for the given outcome.
func (c *CommissionMetrics) IncProposal(outcome string) {
	if c == nil || c.proposals == nil {
		return
	}
	c.proposals.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveDistribute records how long one distribution run took for the
// revenue source type.
func (c *CommissionMetrics) ObserveDistribute(source string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(source)).Observe(duration.Seconds())
}
