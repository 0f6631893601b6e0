// Package metrics registers the prometheus collectors the coordinator
// exposes, following the counter/gauge/histogram shape used in
// cn-dms's own metrics setup.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the coordinator updates. A zero
// value is not usable; construct with New.
type Metrics struct {
	DispatchedTotal   *prometheus.CounterVec
	DispatchErrors    *prometheus.CounterVec
	WorkflowDuration   *prometheus.HistogramVec
	ActiveTasks        prometheus.Gauge
	ProberPingsMissed  prometheus.Gauge
}

// New creates and registers all collectors against reg. Passing
// prometheus.NewRegistry() keeps tests isolated from the global
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lcm",
			Name:      "dispatched_total",
			Help:      "Total bus commands dispatched, by topic and command.",
		}, []string{"topic", "command"}),
		DispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lcm",
			Name:      "dispatch_errors_total",
			Help:      "Total dispatch-loop read/route errors.",
		}, []string{"stage"}),
		WorkflowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lcm",
			Name:      "workflow_duration_seconds",
			Help:      "Workflow execution time, by workflow name and outcome.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s .. 8192s (~2.3h)
		}, []string{"workflow", "outcome"}),
		ActiveTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lcm",
			Name:      "active_tasks",
			Help:      "Number of tasks currently tracked by the task registry.",
		}),
		ProberPingsMissed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lcm",
			Name:      "prober_pings_missed",
			Help:      "Consecutive liveness pings sent without a matching reply.",
		}),
	}

	reg.MustRegister(m.DispatchedTotal, m.DispatchErrors, m.WorkflowDuration, m.ActiveTasks, m.ProberPingsMissed)
	return m
}
