package bonus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/novunt/client-core/metrics"
)

// Metrics holds bonus refresh metrics. A nil *Metrics records nothing.
type Metrics struct {
	RefreshesTotal *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	CompletedTotal prometheus.Counter
	PollersActive  prometheus.Gauge
}

// NewMetrics creates bonus metrics on the shared registry.
func NewMetrics() *Metrics {
	reg := metrics.NewComponentRegistry("novunt", "bonus")

	return &Metrics{
		RefreshesTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "refreshes_total",
			Help: "Bonus status refreshes by trigger and result",
		}, []string{"trigger", "result"}),
		FetchDuration: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Duration of bonus status fetches",
			Buckets: metrics.DurationBuckets,
		}),
		CompletedTotal: reg.NewCounter(prometheus.CounterOpts{
			Name: "all_requirements_met_total",
			Help: "Pollers that stopped because every requirement was met",
		}),
		PollersActive: reg.NewGauge(prometheus.GaugeOpts{
			Name: "pollers_active",
			Help: "Number of running bonus pollers",
		}),
	}
}

func (m *Metrics) recordRefresh(trigger, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(trigger, result).Inc()
	m.FetchDuration.Observe(took.Seconds())
}

func (m *Metrics) recordCompleted() {
	if m == nil {
		return
	}
	m.CompletedTotal.Inc()
}

func (m *Metrics) pollerStarted() {
	if m == nil {
		return
	}
	m.PollersActive.Inc()
}

func (m *Metrics) pollerStopped() {
	if m == nil {
		return
	}
	m.PollersActive.Dec()
}
