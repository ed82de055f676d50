package submitguard

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/novunt/client-core/metrics"
)

// Rejection reasons.
const (
	ReasonInFlight = "in_flight"
	ReasonCooldown = "cooldown"
)

// Metrics holds guard metrics. A nil *Metrics records nothing.
type Metrics struct {
	AcceptedTotal *prometheus.CounterVec
	RejectedTotal *prometheus.CounterVec
	FailedTotal   *prometheus.CounterVec
}

// NewMetrics creates guard metrics on the shared registry.
func NewMetrics() *Metrics {
	reg := metrics.NewComponentRegistry("novunt", "submit_guard")

	return &Metrics{
		AcceptedTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "accepted_total",
			Help: "Guarded actions that were started",
		}, []string{"action"}),
		RejectedTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "rejected_total",
			Help: "Guarded calls dropped by policy",
		}, []string{"action", "reason"}),
		FailedTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "failed_total",
			Help: "Accepted actions that returned an error",
		}, []string{"action"}),
	}
}

func (m *Metrics) recordAccepted(action string) {
	if m == nil {
		return
	}
	m.AcceptedTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) recordRejected(action, reason string) {
	if m == nil {
		return
	}
	m.RejectedTotal.WithLabelValues(action, reason).Inc()
}

func (m *Metrics) recordFailed(action string) {
	if m == nil {
		return
	}
	m.FailedTotal.WithLabelValues(action).Inc()
}
