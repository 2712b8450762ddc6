package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking wizard flows.
type BookingMetrics struct {
	advanceTotal   *prometheus.CounterVec
	submitTotal    *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	sessionsActive prometheus.Gauge
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		advanceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "odontosys",
			Subsystem: "booking",
			Name:      "wizard_advance_total",
			Help:      "Total wizard advance attempts",
		}, []string{"step", "outcome"}),
		submitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "odontosys",
			Subsystem: "booking",
			Name:      "wizard_submit_total",
			Help:      "Total wizard submissions",
		}, []string{"mode", "outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "odontosys",
			Subsystem: "booking",
			Name:      "clinic_api_latency_seconds",
			Help:      "Latency of clinic API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "odontosys",
			Subsystem: "booking",
			Name:      "wizard_sessions_active",
			Help:      "Wizard sessions currently open",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.advanceTotal, m.submitTotal, m.gatewayLatency, m.sessionsActive)
	return m
}

func (m *BookingMetrics) ObserveAdvance(step, outcome string) {
	if m == nil {
		return
	}
	m.advanceTotal.WithLabelValues(step, outcome).Inc()
}

func (m *BookingMetrics) ObserveSubmit(mode, outcome string) {
	if m == nil {
		return
	}
	m.submitTotal.WithLabelValues(mode, outcome).Inc()
}

func (m *BookingMetrics) ObserveGatewayLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *BookingMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *BookingMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}
