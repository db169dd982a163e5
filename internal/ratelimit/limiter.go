package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/vyrodovalexey/avsecgw/internal/observability"
	"github.com/vyrodovalexey/avsecgw/internal/ratelimit/store"
)

// DefaultPenaltyCap is the maximum penalty applied when a window
// overflows, regardless of window size.
const DefaultPenaltyCap = 5 * time.Minute

// Result holds the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Limit is the configured request limit for the window.
	Limit int

	// Remaining is the number of requests remaining in the window.
	Remaining int

	// ResetAfter is the time until the window fully resets.
	ResetAfter time.Duration

	// RetryAfter is the time until a retry may succeed. Zero when the
	// request was allowed.
	RetryAfter time.Duration
}

// Limiter implements per-identifier, per-kind sliding window rate
// limiting. Limits are supplied on each check, so different callers
// can enforce different budgets against the same limiter.
type Limiter struct {
	windows    sync.Map
	blocks     store.BlockStore
	penaltyCap time.Duration
	logger     observability.Logger
	metrics    *Metrics
}

// windowState holds the request timestamps for one identifier and
// kind pair.
type windowState struct {
	requests []time.Time
	mu       sync.Mutex
}

// Option is a functional option for the Limiter.
type Option func(*Limiter)

// WithLogger sets the logger for the limiter.
func WithLogger(logger observability.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithBlockStore sets the backing store for the blocklist.
func WithBlockStore(s store.BlockStore) Option {
	return func(l *Limiter) {
		l.blocks = s
	}
}

// WithPenaltyCap overrides the maximum overflow penalty.
func WithPenaltyCap(cap time.Duration) Option {
	return func(l *Limiter) {
		if cap > 0 {
			l.penaltyCap = cap
		}
	}
}

// NewLimiter creates a new limiter. Without WithBlockStore the
// blocklist is kept in process memory.
func NewLimiter(opts ...Option) *Limiter {
	l := &Limiter{
		penaltyCap: DefaultPenaltyCap,
		logger:     observability.NopLogger(),
		metrics:    GetMetrics(),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.blocks == nil {
		l.blocks = store.NewMemoryStore()
	}

	return l
}

// Check records a request for the identifier and kind and reports
// whether it fits within limit requests per window. On overflow the
// window is padded so the offender stays rejected for a penalty of
// min(penaltyCap, 2*window).
func (l *Limiter) Check(ctx context.Context, identifier, kind string, limit int, window time.Duration) *Result {
	if limit <= 0 || window <= 0 {
		return &Result{Allowed: true, Limit: limit}
	}

	now := time.Now()
	ws := l.getOrCreateWindowState(identifier, kind)

	ws.mu.Lock()
	defer ws.mu.Unlock()

	l.purgeExpired(ws, now, window)

	currentCount := len(ws.requests)
	if currentCount < limit {
		ws.requests = append(ws.requests, now)
		l.metrics.ChecksTotal.WithLabelValues(kind, "allowed").Inc()

		return &Result{
			Allowed:    true,
			Limit:      limit,
			Remaining:  limit - currentCount - 1,
			ResetAfter: resetAfter(ws, now, window),
		}
	}

	retryAfter := l.applyPenalty(ws, now, kind, limit, window)
	l.metrics.ChecksTotal.WithLabelValues(kind, "rejected").Inc()

	l.logger.Warn("rate limit exceeded",
		observability.String("identifier", identifier),
		observability.String("kind", kind),
		observability.Int("limit", limit),
		observability.Duration("retry_after", retryAfter),
	)

	return &Result{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAfter: resetAfter(ws, now, window),
		RetryAfter: retryAfter,
	}
}

// Peek reports the current window usage without recording a request
// or applying penalties.
func (l *Limiter) Peek(identifier, kind string, limit int, window time.Duration) *Result {
	if limit <= 0 || window <= 0 {
		return &Result{Allowed: true, Limit: limit}
	}

	now := time.Now()
	ws := l.getOrCreateWindowState(identifier, kind)

	ws.mu.Lock()
	defer ws.mu.Unlock()

	l.purgeExpired(ws, now, window)

	currentCount := len(ws.requests)
	remaining := limit - currentCount
	if remaining < 0 {
		remaining = 0
	}

	var retryAfter time.Duration
	if currentCount >= limit {
		retryAfter = retryAfterFrom(ws, now, window)
	}

	return &Result{
		Allowed:    currentCount < limit,
		Limit:      limit,
		Remaining:  remaining,
		ResetAfter: resetAfter(ws, now, window),
		RetryAfter: retryAfter,
	}
}

// Reset clears the window for the identifier and kind.
func (l *Limiter) Reset(identifier, kind string) {
	l.windows.Delete(windowKey(identifier, kind))
}

// applyPenalty pads the window with synthetic future timestamps so
// that the identifier stays over the limit for the penalty duration.
// An already penalized window is not extended by further attempts.
func (l *Limiter) applyPenalty(ws *windowState, now time.Time, kind string, limit int, window time.Duration) time.Duration {
	if last := ws.requests[len(ws.requests)-1]; last.After(now) {
		return last.Add(window).Sub(now)
	}

	penalty := 2 * window
	if penalty > l.penaltyCap {
		penalty = l.penaltyCap
	}

	synthetic := now.Add(penalty - window)
	ws.requests = ws.requests[:0]
	for i := 0; i < limit; i++ {
		ws.requests = append(ws.requests, synthetic)
	}

	l.metrics.PenaltiesTotal.WithLabelValues(kind).Inc()
	return penalty
}

// getOrCreateWindowState retrieves or creates the window state for the
// identifier and kind.
func (l *Limiter) getOrCreateWindowState(identifier, kind string) *windowState {
	value, _ := l.windows.LoadOrStore(windowKey(identifier, kind), &windowState{
		requests: make([]time.Time, 0),
	})
	return value.(*windowState)
}

// purgeExpired removes requests that fell out of the window.
func (l *Limiter) purgeExpired(ws *windowState, now time.Time, window time.Duration) {
	windowStart := now.Add(-window)
	valid := ws.requests[:0]
	for _, t := range ws.requests {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	ws.requests = valid
}

// resetAfter returns the time until the oldest request leaves the
// window.
func resetAfter(ws *windowState, now time.Time, window time.Duration) time.Duration {
	if len(ws.requests) == 0 {
		return window
	}

	d := ws.requests[0].Add(window).Sub(now)
	if d < 0 {
		d = 0
	}
	return d
}

// retryAfterFrom returns the time until the most recent request,
// synthetic or real, leaves the window.
func retryAfterFrom(ws *windowState, now time.Time, window time.Duration) time.Duration {
	if len(ws.requests) == 0 {
		return 0
	}

	d := ws.requests[len(ws.requests)-1].Add(window).Sub(now)
	if d < 0 {
		d = 0
	}
	return d
}

// Cleanup removes window states whose requests are all older than
// maxAge. Intended to run periodically from a maintenance goroutine.
func (l *Limiter) Cleanup(maxAge time.Duration) {
	now := time.Now()
	cutoff := now.Add(-maxAge)

	l.windows.Range(func(key, value interface{}) bool {
		ws := value.(*windowState)
		ws.mu.Lock()

		stale := true
		for _, t := range ws.requests {
			if t.After(cutoff) {
				stale = false
				break
			}
		}

		if stale {
			l.windows.Delete(key)
		}

		ws.mu.Unlock()
		return true
	})
}

// windowKey builds the composite key for an identifier and kind.
func windowKey(identifier, kind string) string {
	return identifier + "|" + kind
}
