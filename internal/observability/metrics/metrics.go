package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for scheduling flows.
// All methods tolerate a nil receiver so wiring stays optional.
type SchedulingMetrics struct {
	operationsTotal *prometheus.CounterVec
	conflictsTotal  *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	sweptHolds      prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "core",
			Name:      "operations_total",
			Help:      "Total scheduling operations by outcome",
		}, []string{"operation", "outcome"}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "core",
			Name:      "concurrency_conflicts_total",
			Help:      "Conditional writes rejected by version mismatch",
		}, []string{"entity"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scheduling",
			Subsystem: "sweeper",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of hold TTL sweep passes",
			Buckets:   prometheus.DefBuckets,
		}),
		sweptHolds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "sweeper",
			Name:      "expired_holds_total",
			Help:      "Holds transitioned to expired by the sweeper",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.conflictsTotal, m.sweepDuration, m.sweptHolds)
	return m
}

func (m *SchedulingMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveConflict(entity string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(entity).Inc()
}

func (m *SchedulingMetrics) ObserveSweep(seconds float64, expired int) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(seconds)
	m.sweptHolds.Add(float64(expired))
}
