// Package metrics exposes the prometheus instrumentation collected by the
// analyzer and the worker pool.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "flowinspector"

// Metrics bundles every collector this module registers.  A single instance
// is constructed by the supervisor and threaded down to the components that
// report through it.
type Metrics struct {
	PacketsProcessed prometheus.Counter
	PacketsDropped   prometheus.Counter
	RuleMatches      *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
}

// New registers every collector against reg and returns the bundle.  reg is
// typically prometheus.NewRegistry(), constructed once by the supervisor;
// passing the same registry twice panics on duplicate registration, matching
// the ordinary prometheus client behavior.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PacketsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_processed_total",
			Help:      "Frames decoded by a worker and matched against the active ruleset.",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Frames discarded because the worker pool's queue was full.",
		}),
		RuleMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_matches_total",
			Help:      "Rule matches, labeled by rule name and event type.",
		}, []string{"rule", "event_type"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of frames buffered in the worker pool's queue, sampled at each enqueue.",
		}),
	}

	reg.MustRegister(m.PacketsProcessed, m.PacketsDropped, m.RuleMatches, m.QueueDepth)

	return m
}
