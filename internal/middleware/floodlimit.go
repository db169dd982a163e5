package middleware

import (
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avsecgw/internal/monitor"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
)

// Flood limiter defaults.
const (
	// DefaultClientTTL is the TTL for per-client limiter entries.
	DefaultClientTTL = 10 * time.Minute

	// floodCleanupInterval is how often stale entries are removed.
	floodCleanupInterval = time.Minute
)

// floodEntry holds a token bucket and its last access time.
type floodEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// FloodLimiter is a cheap per-client token bucket applied before the
// sliding window accounting. It absorbs raw request floods without
// touching window state or recording events.
type FloodLimiter struct {
	clients   map[string]*floodEntry
	mu        sync.Mutex
	rps       int
	burst     int
	clientTTL time.Duration
	logger    observability.Logger
	stopCh    chan struct{}
	stopped   bool
}

// FloodLimiterOption is a functional option for the flood limiter.
type FloodLimiterOption func(*FloodLimiter)

// WithFloodLimiterLogger sets the logger for the flood limiter.
func WithFloodLimiterLogger(logger observability.Logger) FloodLimiterOption {
	return func(fl *FloodLimiter) {
		fl.logger = logger
	}
}

// NewFloodLimiter creates a new per-client flood limiter.
func NewFloodLimiter(rps, burst int, opts ...FloodLimiterOption) *FloodLimiter {
	fl := &FloodLimiter{
		clients:   make(map[string]*floodEntry),
		rps:       rps,
		burst:     burst,
		clientTTL: DefaultClientTTL,
		logger:    observability.NopLogger(),
		stopCh:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(fl)
	}

	return fl
}

// Allow checks whether the client may proceed.
func (fl *FloodLimiter) Allow(clientAddr string) bool {
	now := time.Now()

	fl.mu.Lock()
	entry, exists := fl.clients[clientAddr]
	if !exists {
		entry = &floodEntry{
			limiter:    rate.NewLimiter(rate.Limit(fl.rps), fl.burst),
			lastAccess: now,
		}
		fl.clients[clientAddr] = entry
	} else {
		entry.lastAccess = now
	}
	limiter := entry.limiter
	fl.mu.Unlock()

	return limiter.Allow()
}

// CleanupStale removes entries that have not been seen within maxAge.
func (fl *FloodLimiter) CleanupStale(maxAge time.Duration) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	now := time.Now()
	for addr, entry := range fl.clients {
		if now.Sub(entry.lastAccess) > maxAge {
			delete(fl.clients, addr)
		}
	}
}

// StartCleanup starts the periodic stale entry cleanup goroutine.
func (fl *FloodLimiter) StartCleanup() {
	go func() {
		ticker := time.NewTicker(floodCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fl.CleanupStale(fl.clientTTL)
			case <-fl.stopCh:
				return
			}
		}
	}()
}

// Stop stops the cleanup goroutine.
func (fl *FloodLimiter) Stop() {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if !fl.stopped {
		fl.stopped = true
		close(fl.stopCh)
	}
}

// FloodLimit returns a middleware that applies the flood limiter per
// client address.
func FloodLimit(fl *FloodLimiter, mon *monitor.Monitor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientAddr := getClientIP(r)

			if !fl.Allow(clientAddr) {
				fl.logger.Warn("flood limit exceeded",
					observability.String("client_addr", clientAddr),
					observability.String("path", r.URL.Path),
				)

				GetMetrics().floodRejected.Inc()
				recordRejection(r, mon, http.StatusTooManyRequests, "flood limit exceeded")

				w.Header().Set(HeaderContentType, ContentTypeJSON)
				w.Header().Set(HeaderRetryAfter, strconv.Itoa(1))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, ErrRateLimitExceeded)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
