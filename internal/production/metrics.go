package production

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes per-session macrostep throughput to Prometheus, labelled
// by session_id, so one Metrics can serve every session — the
// interpreter never imports prometheus itself, so this wires
// core.WithMetricsHook's func(sessionID string, microsteps int) callback
// into a registered collector for a host that wants scrape-able metrics.
type Metrics struct {
	macrosteps  *prometheus.CounterVec
	microsteps  *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		macrosteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scxml_macrosteps_total",
			Help: "Number of macrosteps processed per session.",
		}, []string{"session_id"}),
		microsteps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scxml_microsteps_per_macrostep",
			Help:    "Number of microsteps taken to reach a stable configuration.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}, []string{"session_id"}),
	}
	reg.MustRegister(m.macrosteps, m.microsteps)
	return m
}

// Hook is installed via core.WithMetricsHook.
func (m *Metrics) Hook(sessionID string, microsteps int) {
	m.macrosteps.WithLabelValues(sessionID).Inc()
	m.microsteps.WithLabelValues(sessionID).Observe(float64(microsteps))
}
