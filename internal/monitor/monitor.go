package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avsecgw/internal/observability"
)

// Buffer and detection defaults.
const (
	// DefaultBufferSize is the number of events retained in memory.
	DefaultBufferSize = 10_000

	// BruteForceThreshold is the number of failed logins within the
	// window that triggers a brute force detection.
	BruteForceThreshold = 5

	// BruteForceWindow is the observation window for failed logins.
	BruteForceWindow = 15 * time.Minute

	// HighVolumeThreshold is the number of events from one client
	// address within the window that triggers a high volume detection.
	HighVolumeThreshold = 100

	// HighVolumeWindow is the observation window for event volume.
	HighVolumeWindow = time.Hour
)

// DetectionHook is invoked after a detector records a detection event.
// Hooks must not call back into the monitor.
type DetectionHook func(ctx context.Context, event *Event)

// Monitor records security events into a bounded ring buffer and runs
// anomaly detectors over them.
type Monitor struct {
	mu       sync.RWMutex
	events   []*Event
	next     int
	size     int
	capacity int

	// Last detection time per client address, used to raise each
	// detection once per window.
	bruteForceSeen map[string]time.Time
	highVolumeSeen map[string]time.Time

	bruteForceThreshold int
	bruteForceWindow    time.Duration
	highVolumeThreshold int
	highVolumeWindow    time.Duration

	logger  observability.Logger
	metrics *Metrics
	hook    DetectionHook
	now     func() time.Time
}

// Option is a functional option for the Monitor.
type Option func(*Monitor)

// WithLogger sets the logger for the monitor.
func WithLogger(logger observability.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithBufferSize overrides the ring buffer capacity.
func WithBufferSize(size int) Option {
	return func(m *Monitor) {
		if size > 0 {
			m.capacity = size
		}
	}
}

// WithDetectionHook registers a hook invoked on every detection
// event.
func WithDetectionHook(hook DetectionHook) Option {
	return func(m *Monitor) {
		m.hook = hook
	}
}

// WithBruteForceLimits overrides the brute force detection threshold
// and window.
func WithBruteForceLimits(threshold int, window time.Duration) Option {
	return func(m *Monitor) {
		if threshold > 0 {
			m.bruteForceThreshold = threshold
		}
		if window > 0 {
			m.bruteForceWindow = window
		}
	}
}

// WithHighVolumeLimits overrides the high volume detection threshold
// and window.
func WithHighVolumeLimits(threshold int, window time.Duration) Option {
	return func(m *Monitor) {
		if threshold > 0 {
			m.highVolumeThreshold = threshold
		}
		if window > 0 {
			m.highVolumeWindow = window
		}
	}
}

// New creates a new monitor.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		capacity:            DefaultBufferSize,
		bruteForceSeen:      make(map[string]time.Time),
		highVolumeSeen:      make(map[string]time.Time),
		bruteForceThreshold: BruteForceThreshold,
		bruteForceWindow:    BruteForceWindow,
		highVolumeThreshold: HighVolumeThreshold,
		highVolumeWindow:    HighVolumeWindow,
		logger:              observability.NopLogger(),
		metrics:             GetMetrics(),
		now:                 time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.events = make([]*Event, m.capacity)
	return m
}

// Record stores the event and runs the detectors when the event is
// warning severity or higher. Detection events recorded by the
// detectors themselves are stored but never re-analyzed.
func (m *Monitor) Record(ctx context.Context, event *Event) {
	if event == nil {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now()
	}
	m.attachTraceContext(ctx, event)

	m.mu.Lock()
	m.events[m.next] = event
	m.next = (m.next + 1) % m.capacity
	if m.size < m.capacity {
		m.size++
	}
	m.mu.Unlock()

	m.metrics.EventsTotal.WithLabelValues(event.Type, event.Severity.String()).Inc()
	m.logEvent(event)

	if event.Severity >= SeverityWarning && !isDetectionEvent(event.Type) {
		m.analyze(ctx, event)
	}
}

// attachTraceContext copies the active trace and span identifiers into
// the event details.
func (m *Monitor) attachTraceContext(ctx context.Context, event *Event) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}

	if event.Details == nil {
		event.Details = make(map[string]interface{}, 2)
	}
	event.Details["trace_id"] = sc.TraceID().String()
	event.Details["span_id"] = sc.SpanID().String()
}

// logEvent writes the event to the structured log at a level matching
// its severity.
func (m *Monitor) logEvent(event *Event) {
	fields := []observability.Field{
		observability.String("event_id", event.ID),
		observability.String("event_type", event.Type),
		observability.String("severity", event.Severity.String()),
		observability.String("subject_id", event.SubjectID),
		observability.String("client_addr", event.ClientAddr),
	}

	switch {
	case event.Severity >= SeverityError:
		m.logger.Error("security event", fields...)
	case event.Severity == SeverityWarning:
		m.logger.Warn("security event", fields...)
	default:
		m.logger.Info("security event", fields...)
	}
}

// isDetectionEvent reports whether the event type is produced by a
// detector.
func isDetectionEvent(eventType string) bool {
	return eventType == EventBruteForceDetected || eventType == EventHighVolumeDetected
}

// Filter selects events for Query. Zero fields match everything.
type Filter struct {
	// Type matches the event type exactly when non-empty.
	Type string

	// MinSeverity excludes events below this severity.
	MinSeverity Severity

	// SubjectID matches the acting subject when non-empty.
	SubjectID string

	// ClientAddr matches the client address when non-empty.
	ClientAddr string

	// Since excludes events at or before this time when non-zero.
	Since time.Time

	// Until excludes events after this time when non-zero.
	Until time.Time

	// Limit caps the number of returned events. Zero means no limit.
	Limit int
}

// matches reports whether the event passes the filter.
func (f *Filter) matches(event *Event) bool {
	if f.Type != "" && event.Type != f.Type {
		return false
	}
	if event.Severity < f.MinSeverity {
		return false
	}
	if f.SubjectID != "" && event.SubjectID != f.SubjectID {
		return false
	}
	if f.ClientAddr != "" && event.ClientAddr != f.ClientAddr {
		return false
	}
	if !f.Since.IsZero() && !event.Timestamp.After(f.Since) {
		return false
	}
	if !f.Until.IsZero() && event.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Query returns matching events, newest first. Returned events are
// copies and safe to retain.
func (m *Monitor) Query(filter Filter) []*Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Event, 0)
	for i := 0; i < m.size; i++ {
		event := m.eventAt(i)
		if !filter.matches(event) {
			continue
		}

		result = append(result, event.clone())
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}

	return result
}

// eventAt returns the i-th newest event. Callers must hold the lock.
func (m *Monitor) eventAt(i int) *Event {
	idx := (m.next - 1 - i + m.capacity*2) % m.capacity
	return m.events[idx]
}
