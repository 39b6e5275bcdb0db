package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveOperation("create_hold", "ok")
	m.ObserveOperation("create_hold", "ok")
	m.ObserveOperation("create_hold", "invalid_state")

	got := testutil.ToFloat64(m.operationsTotal.WithLabelValues("create_hold", "ok"))
	if got != 2 {
		t.Fatalf("expected 2 ok operations, got %f", got)
	}
	got = testutil.ToFloat64(m.operationsTotal.WithLabelValues("create_hold", "invalid_state"))
	if got != 1 {
		t.Fatalf("expected 1 invalid_state operation, got %f", got)
	}
}

func TestObserveConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveConflict("booking")
	m.ObserveConflict("booking")
	m.ObserveConflict("hold")

	if got := testutil.ToFloat64(m.conflictsTotal.WithLabelValues("booking")); got != 2 {
		t.Fatalf("expected 2 booking conflicts, got %f", got)
	}
	if got := testutil.ToFloat64(m.conflictsTotal.WithLabelValues("hold")); got != 1 {
		t.Fatalf("expected 1 hold conflict, got %f", got)
	}
}

func TestObserveSweep(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveSweep(0.05, 7)
	m.ObserveSweep(0.10, 3)

	if got := testutil.ToFloat64(m.sweptHolds); got != 10 {
		t.Fatalf("expected 10 swept holds, got %f", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveOperation("create_hold", "ok")
	m.ObserveConflict("hold")
	m.ObserveSweep(0.1, 1)
}
