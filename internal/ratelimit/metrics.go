package ratelimit

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for rate limiting.
type Metrics struct {
	// ChecksTotal counts rate limit checks by kind and outcome.
	ChecksTotal *prometheus.CounterVec

	// PenaltiesTotal counts overflow penalties applied by kind.
	PenaltiesTotal *prometheus.CounterVec

	// BlocksTotal counts identifiers added to the blocklist.
	BlocksTotal prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// GetMetrics returns the singleton rate limit metrics, registering
// them on first use.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			ChecksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "secgw",
					Subsystem: "ratelimit",
					Name:      "checks_total",
					Help:      "Total number of rate limit checks",
				},
				[]string{"kind", "outcome"},
			),
			PenaltiesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "secgw",
					Subsystem: "ratelimit",
					Name:      "penalties_total",
					Help:      "Total number of overflow penalties applied",
				},
				[]string{"kind"},
			),
			BlocksTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "secgw",
					Subsystem: "ratelimit",
					Name:      "blocks_total",
					Help:      "Total number of identifiers blocked",
				},
			),
		}
	})

	return metricsInstance
}
