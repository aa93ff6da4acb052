package sync

import "github.com/prometheus/client_golang/prometheus"

// engineMetrics holds the engine's Prometheus collectors. A nil receiver is
// valid everywhere: metrics are simply disabled when no registry was given.
type engineMetrics struct {
	cycles        prometheus.Counter
	cycleFailures prometheus.Counter
	pushedTotal   prometheus.Counter
	pulledTotal   prometheus.Counter
	conflictTotal prometheus.Counter
	pendingGauge  prometheus.Gauge
}

func newEngineMetrics(reg prometheus.Registerer) *engineMetrics {
	if reg == nil {
		return nil
	}
	m := &engineMetrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sync_cycles_total",
			Help: "Sync cycles run, successful or not",
		}),
		cycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sync_cycle_failures_total",
			Help: "Sync cycles that finished with an error",
		}),
		pushedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sync_pushed_changes_total",
			Help: "Local changes acknowledged by the remote",
		}),
		pulledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sync_pulled_records_total",
			Help: "Remote records applied locally",
		}),
		conflictTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sync_conflicts_detected_total",
			Help: "Conflicts reported by the remote during push",
		}),
		pendingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sync_pending_changes",
			Help: "Unsynced changes currently in the change log",
		}),
	}
	reg.MustRegister(
		m.cycles, m.cycleFailures, m.pushedTotal,
		m.pulledTotal, m.conflictTotal, m.pendingGauge,
	)
	return m
}

func (m *engineMetrics) observeCycle(err error) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	if err != nil {
		m.cycleFailures.Inc()
	}
}

func (m *engineMetrics) addPushed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pushedTotal.Add(float64(n))
}

func (m *engineMetrics) addPulled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pulledTotal.Add(float64(n))
}

func (m *engineMetrics) addConflicts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.conflictTotal.Add(float64(n))
}

func (m *engineMetrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pendingGauge.Set(float64(n))
}
