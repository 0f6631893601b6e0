package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectorsWithoutPanicking(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() { New(reg) })
}

func TestCollectorsObserveValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.DispatchedTotal.With(prometheus.Labels{"topic": "ns", "command": "instantiate"}).Inc()
	m.DispatchErrors.With(prometheus.Labels{"stage": "read"}).Inc()
	m.WorkflowDuration.With(prometheus.Labels{"workflow": "ns_instantiate", "outcome": "ok"}).Observe(1.5)
	m.ActiveTasks.Set(3)
	m.ProberPingsMissed.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "lcm_dispatched_total")
	assert.Contains(t, names, "lcm_active_tasks")

	var activeTasks float64
	for _, f := range families {
		if f.GetName() == "lcm_active_tasks" {
			activeTasks = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, float64(3), activeTasks)
}
