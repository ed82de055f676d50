package cooldown

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/novunt/client-core/metrics"
)

// Metrics holds countdown metrics. A nil *Metrics records nothing.
type Metrics struct {
	StartsTotal      prometheus.Counter
	TriggersTotal    *prometheus.CounterVec
	ExpirationsTotal prometheus.Counter
}

// NewMetrics creates cooldown metrics on the shared registry.
func NewMetrics() *Metrics {
	reg := metrics.NewComponentRegistry("novunt", "cooldown")

	return &Metrics{
		StartsTotal: reg.NewCounter(prometheus.CounterOpts{
			Name: "starts_total",
			Help: "Countdowns started with a positive duration",
		}),
		TriggersTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "triggers_total",
			Help: "External cooldown signals by outcome",
		}, []string{"result"}),
		ExpirationsTotal: reg.NewCounter(prometheus.CounterOpts{
			Name: "expirations_total",
			Help: "Countdowns that ticked down to zero",
		}),
	}
}

func (m *Metrics) recordStart() {
	if m == nil {
		return
	}
	m.StartsTotal.Inc()
}

func (m *Metrics) recordTrigger(triggered bool) {
	if m == nil {
		return
	}
	result := "ignored"
	if triggered {
		result = "triggered"
	}
	m.TriggersTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) recordExpired() {
	if m == nil {
		return
	}
	m.ExpirationsTotal.Inc()
}
