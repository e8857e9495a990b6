package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetSessions(3)
	m.IncPlacement("accepted")
	m.IncSettlement("normal", "won", 95)
	m.ObserveTick(0.002)

	if got := testutil.ToFloat64(m.Sessions); got != 3 {
		t.Errorf("sessions = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.Placements.WithLabelValues("accepted")); got != 1 {
		t.Errorf("placements{accepted} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Settlements.WithLabelValues("normal", "won")); got != 1 {
		t.Errorf("settlements{normal,won} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Winnings); got != 95 {
		t.Errorf("winnings = %v, want 95", got)
	}
	if got := testutil.ToFloat64(m.Ticks); got != 1 {
		t.Errorf("ticks = %v, want 1", got)
	}

	n, err := testutil.GatherAndCount(reg, "updown_ticks_total", "updown_sessions")
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if n != 2 {
		t.Errorf("gathered %d series, want 2", n)
	}
}

func TestNew_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Error("second New() with same registry did not panic")
		}
	}()
	New(reg)
}

func TestNilSafe(t *testing.T) {
	var m *Metrics

	m.SetSessions(1)
	m.SetPending(1)
	m.ObservePrice("calm", 100)
	m.IncPlacement("accepted")
	m.IncSettlement("calm", "lost", 0)
	m.ObserveTick(0.1)
	m.IncHubDropped()
	m.IncHubEvicted()
	m.IncFrame("placeBet", "ok")
	m.AddAuditWritten(1)
	m.IncAuditDropped()
	m.IncAuditFlushError()
}
