package monitor

import (
	"context"

	"github.com/vyrodovalexey/avsecgw/internal/observability"
)

// analyze runs the detectors for a newly recorded event.
func (m *Monitor) analyze(ctx context.Context, event *Event) {
	if event.Type == EventFailedLogin && event.ClientAddr != "" {
		m.detectBruteForce(ctx, event)
	}
	if event.ClientAddr != "" {
		m.detectHighVolume(ctx, event)
	}
}

// detectBruteForce raises a critical detection when a client address
// accumulates too many failed logins within the window. The detection
// fires once per window per address.
func (m *Monitor) detectBruteForce(ctx context.Context, event *Event) {
	now := m.now()
	cutoff := now.Add(-m.bruteForceWindow)

	m.mu.Lock()
	if last, ok := m.bruteForceSeen[event.ClientAddr]; ok && last.After(cutoff) {
		m.mu.Unlock()
		return
	}

	failed := 0
	for i := 0; i < m.size; i++ {
		e := m.eventAt(i)
		if e.Timestamp.Before(cutoff) {
			break
		}
		if e.Type == EventFailedLogin && e.ClientAddr == event.ClientAddr {
			failed++
		}
	}

	if failed < m.bruteForceThreshold {
		m.mu.Unlock()
		return
	}

	m.bruteForceSeen[event.ClientAddr] = now
	m.mu.Unlock()

	m.logger.Error("brute force detected",
		observability.String("subject_id", event.SubjectID),
		observability.String("client_addr", event.ClientAddr),
		observability.Int("failed_attempts", failed),
	)

	m.recordDetection(ctx, &Event{
		Type:        EventBruteForceDetected,
		Severity:    SeverityCritical,
		SubjectID:   event.SubjectID,
		ClientAddr:  event.ClientAddr,
		ClientAgent: event.ClientAgent,
		Details: map[string]interface{}{
			"failed_attempts": failed,
			"window_seconds":  int(m.bruteForceWindow.Seconds()),
		},
	})
}

// detectHighVolume raises a warning when one client address produces
// an unusually high event volume. High volume is reported, not
// blocked, because bursts can be legitimate.
func (m *Monitor) detectHighVolume(ctx context.Context, event *Event) {
	now := m.now()
	cutoff := now.Add(-m.highVolumeWindow)

	m.mu.Lock()
	if last, ok := m.highVolumeSeen[event.ClientAddr]; ok && last.After(cutoff) {
		m.mu.Unlock()
		return
	}

	volume := 0
	for i := 0; i < m.size; i++ {
		e := m.eventAt(i)
		if e.Timestamp.Before(cutoff) {
			break
		}
		if e.ClientAddr == event.ClientAddr {
			volume++
		}
	}

	if volume <= m.highVolumeThreshold {
		m.mu.Unlock()
		return
	}

	m.highVolumeSeen[event.ClientAddr] = now
	m.mu.Unlock()

	m.logger.Warn("high event volume detected",
		observability.String("client_addr", event.ClientAddr),
		observability.Int("events", volume),
	)

	m.recordDetection(ctx, &Event{
		Type:       EventHighVolumeDetected,
		Severity:   SeverityWarning,
		ClientAddr: event.ClientAddr,
		Details: map[string]interface{}{
			"events":         volume,
			"window_seconds": int(m.highVolumeWindow.Seconds()),
		},
	})
}

// recordDetection stores the detection event and notifies the hook.
func (m *Monitor) recordDetection(ctx context.Context, event *Event) {
	m.metrics.DetectionsTotal.WithLabelValues(event.Type).Inc()
	m.Record(ctx, event)

	if m.hook != nil {
		m.hook(ctx, event.clone())
	}
}
