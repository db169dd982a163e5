package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for security event monitoring.
type Metrics struct {
	// EventsTotal counts recorded events by type and severity.
	EventsTotal *prometheus.CounterVec

	// DetectionsTotal counts detector firings by detection type.
	DetectionsTotal *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// GetMetrics returns the singleton monitor metrics, registering them
// on first use.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			EventsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "secgw",
					Subsystem: "monitor",
					Name:      "events_total",
					Help:      "Total number of recorded security events",
				},
				[]string{"type", "severity"},
			),
			DetectionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "secgw",
					Subsystem: "monitor",
					Name:      "detections_total",
					Help:      "Total number of anomaly detections",
				},
				[]string{"type"},
			),
		}
	})

	return metricsInstance
}
