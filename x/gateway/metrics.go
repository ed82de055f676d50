package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/novunt/client-core/metrics"
)

// Metrics holds gateway metrics. A nil *Metrics records nothing.
type Metrics struct {
	SessionsActive   prometheus.Gauge
	SessionsClosed   *prometheus.CounterVec
	DayStartServed   *prometheus.CounterVec
	WithdrawalsTotal *prometheus.CounterVec
}

// NewMetrics creates gateway metrics on the shared registry.
func NewMetrics() *Metrics {
	reg := metrics.NewComponentRegistry("novunt", "gateway")

	return &Metrics{
		SessionsActive: reg.NewGauge(prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of live user sessions",
		}),
		SessionsClosed: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "sessions_closed_total",
			Help: "Sessions disposed by reason",
		}, []string{"reason"}),
		DayStartServed: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "day_start_served_total",
			Help: "Day-start config responses by freshness",
		}, []string{"source"}),
		WithdrawalsTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "withdrawals_total",
			Help: "Withdrawal submissions by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

func (m *Metrics) sessionClosed(reason string) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsClosed.WithLabelValues(reason).Inc()
}

func (m *Metrics) dayStartServed(source string) {
	if m == nil {
		return
	}
	m.DayStartServed.WithLabelValues(source).Inc()
}

func (m *Metrics) withdrawal(outcome string) {
	if m == nil {
		return
	}
	m.WithdrawalsTotal.WithLabelValues(outcome).Inc()
}
