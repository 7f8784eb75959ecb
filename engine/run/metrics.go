package run

import (
	"github.com/abratronix/pulse/engine/feed"
	"github.com/abratronix/pulse/pkg/metrics"
)

// runMetrics wraps the registry handles the coordinator touches. A nil
// registry yields a no-op recorder so tests can skip wiring one.
type runMetrics struct {
	reg *metrics.Registry
}

func newRunMetrics(reg *metrics.Registry) *runMetrics {
	return &runMetrics{reg: reg}
}

func (m *runMetrics) rejected() {
	if m.reg == nil {
		return
	}
	m.reg.Counter("pulse_runs_rejected_total", "Triggers rejected because a run was active").Inc()
}

func (m *runMetrics) adapterItems(src feed.Source, n int) {
	if m.reg == nil {
		return
	}
	m.reg.Counter(metrics.WithLabels("pulse_adapter_items_total", "source", string(src)),
		"Candidates contributed per source").Add(int64(n))
}

func (m *runMetrics) adapterFailure(src feed.Source) {
	if m.reg == nil {
		return
	}
	m.reg.Counter(metrics.WithLabels("pulse_adapter_failures_total", "source", string(src)),
		"Adapter fetch failures per source").Inc()
}

func (m *runMetrics) finished(r Report) {
	if m.reg == nil {
		return
	}
	m.reg.Counter(metrics.WithLabels("pulse_runs_total", "status", string(r.Status)),
		"Finished runs by terminal status").Inc()
	m.reg.Histogram("pulse_run_duration_seconds", "Wall-clock run duration", nil).
		Observe(r.DurationSeconds)
	if r.Status == StatusSuccess {
		m.reg.Gauge("pulse_snapshot_items", "Items in the last published snapshot").
			Set(int64(r.TotalItems))
		m.reg.Counter("pulse_items_dropped_total", "Candidates dropped by validation").
			Add(int64(r.Dropped))
	}
}
