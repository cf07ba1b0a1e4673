package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects pipeline and backup metrics. A nil *Metrics is safe to
// use; every method no-ops, so tests can pass nil instead of a registry.
type Metrics struct {
	requestsRejected *prometheus.CounterVec
	rateLimited      prometheus.Counter
	backupRuns       *prometheus.CounterVec
	backupDuration   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workshop",
			Subsystem: "pipeline",
			Name:      "requests_rejected_total",
			Help:      "Requests rejected by the authorization pipeline, by stage and reason.",
		}, []string{"stage", "reason"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workshop",
			Subsystem: "pipeline",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		backupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workshop",
			Subsystem: "backup",
			Name:      "runs_total",
			Help:      "Per-tenant backup attempts, by outcome.",
		}, []string{"outcome"}),
		backupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "workshop",
			Subsystem: "backup",
			Name:      "duration_seconds",
			Help:      "Duration of a single tenant backup.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
	reg.MustRegister(m.requestsRejected, m.rateLimited, m.backupRuns, m.backupDuration)
	return m
}

// RecordRejection counts a pipeline rejection
func (m *Metrics) RecordRejection(stage, reason string) {
	if m == nil {
		return
	}
	m.requestsRejected.WithLabelValues(stage, reason).Inc()
}

// RecordRateLimited counts a rate-limiter rejection
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// RecordBackup counts one tenant backup attempt and its duration
func (m *Metrics) RecordBackup(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.backupRuns.WithLabelValues(outcome).Inc()
	m.backupDuration.Observe(seconds)
}
