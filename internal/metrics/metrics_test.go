package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	if m == nil {
		t.Fatal("NewMetricsWithRegistry returned nil")
	}
	if m.RoomsActive == nil {
		t.Error("RoomsActive metric is nil")
	}
	if m.PunchOutcomes == nil {
		t.Error("PunchOutcomes metric is nil")
	}
}

func TestRoomLifecycleCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RoomsCreated.Inc()
	m.RoomsCreated.Inc()
	m.RoomsActive.Set(2)
	m.RoomsExpired.Inc()

	if got := testutil.ToFloat64(m.RoomsCreated); got != 2 {
		t.Errorf("RoomsCreated = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RoomsActive); got != 2 {
		t.Errorf("RoomsActive = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RoomsExpired); got != 1 {
		t.Errorf("RoomsExpired = %v, want 1", got)
	}
}

func TestPunchOutcomesByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.PunchOutcomes.WithLabelValues("verified").Inc()
	m.PunchOutcomes.WithLabelValues("verified").Inc()
	m.PunchOutcomes.WithLabelValues("timeout").Inc()

	if got := testutil.ToFloat64(m.PunchOutcomes.WithLabelValues("verified")); got != 2 {
		t.Errorf("verified outcomes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PunchOutcomes.WithLabelValues("timeout")); got != 1 {
		t.Errorf("timeout outcomes = %v, want 1", got)
	}
}

func TestDefault_ReturnsSingleton(t *testing.T) {
	a := Default()
	b := Default()
	if a != b {
		t.Error("Default() returned different instances across calls")
	}
}
