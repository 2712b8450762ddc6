package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveAdvance(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveAdvance("specialty", "ok")
	m.ObserveAdvance("specialty", "ok")
	m.ObserveAdvance("availability", "invalid")

	if got := testutil.ToFloat64(m.advanceTotal.WithLabelValues("specialty", "ok")); got != 2 {
		t.Fatalf("expected 2 ok advances, got %v", got)
	}
	if got := testutil.ToFloat64(m.advanceTotal.WithLabelValues("availability", "invalid")); got != 1 {
		t.Fatalf("expected 1 invalid advance, got %v", got)
	}
}

func TestSessionGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	if got := testutil.ToFloat64(m.sessionsActive); got != 1 {
		t.Fatalf("expected 1 active session, got %v", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveAdvance("specialty", "ok")
	m.ObserveSubmit("guest", "ok")
	m.ObserveGatewayLatency("list_specialties", 0.1)
	m.SessionOpened()
	m.SessionClosed()
}
