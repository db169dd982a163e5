package middleware

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for middleware operations.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	guardRejected *prometheus.CounterVec

	floodRejected       prometheus.Counter
	csrfRejected        prometheus.Counter
	bodyLimitRejected   prometheus.Counter
	contentTypeRejected prometheus.Counter

	panicsRecovered prometheus.Counter
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton middleware metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

func newMetrics() *Metrics {
	return &Metrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "secgw",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by method and status",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "secgw",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method"},
		),
		guardRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "secgw",
				Subsystem: "middleware",
				Name:      "guard_rejected_total",
				Help:      "Total number of requests rejected by the guard by status",
			},
			[]string{"status"},
		),
		floodRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "secgw",
				Subsystem: "middleware",
				Name:      "flood_rejected_total",
				Help:      "Total number of requests rejected by the flood limiter",
			},
		),
		csrfRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "secgw",
				Subsystem: "middleware",
				Name:      "csrf_rejected_total",
				Help:      "Total number of requests rejected by CSRF protection",
			},
		),
		bodyLimitRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "secgw",
				Subsystem: "middleware",
				Name:      "body_limit_rejected_total",
				Help:      "Total number of requests rejected due to body size limit",
			},
		),
		contentTypeRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "secgw",
				Subsystem: "middleware",
				Name:      "content_type_rejected_total",
				Help:      "Total number of requests rejected due to content type",
			},
		),
		panicsRecovered: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "secgw",
				Subsystem: "middleware",
				Name:      "panics_recovered_total",
				Help:      "Total number of panics recovered",
			},
		),
	}
}
