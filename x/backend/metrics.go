package backend

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/novunt/client-core/metrics"
)

// Metrics holds backend client metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates backend client metrics on the shared registry.
func NewMetrics() *Metrics {
	reg := metrics.NewComponentRegistry("novunt", "backend")

	return &Metrics{
		RequestsTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Backend requests by endpoint and status code",
		}, []string{"endpoint", "status"}),
		RequestDuration: reg.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Backend request latency",
			Buckets: metrics.DurationBuckets,
		}, []string{"endpoint"}),
	}
}

func (m *Metrics) record(endpoint string, status int, took time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.RequestsTotal.WithLabelValues(endpoint, code).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}
