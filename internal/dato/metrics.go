package dato

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for CMA calls
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Retries         *prometheus.CounterVec
}

// NewMetrics creates the CMA collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datocms",
			Subsystem: "cma",
			Name:      "requests_total",
			Help:      "Total number of Content Management API requests",
		}, []string{"method", "resource", "status_code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "datocms",
			Subsystem: "cma",
			Name:      "request_duration_seconds",
			Help:      "Duration of Content Management API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "resource"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datocms",
			Subsystem: "cma",
			Name:      "rate_limited_retries_total",
			Help:      "Requests retried after a 429 response",
		}, []string{"resource"}),
	}

	if reg != nil {
		reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.Retries)
	}
	return m
}

func (m *Metrics) observe(method, resource string, status int, started time.Time) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.RequestsTotal.WithLabelValues(method, resource, code).Inc()
	m.RequestDuration.WithLabelValues(method, resource).Observe(time.Since(started).Seconds())
}

func (m *Metrics) retried(resource string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(resource).Inc()
}
