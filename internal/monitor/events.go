package monitor

import (
	"time"
)

// Severity classifies how serious a security event is.
type Severity int

// Severity levels in ascending order.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity converts a severity name to a Severity. Unknown names
// map to SeverityInfo.
func ParseSeverity(name string) Severity {
	switch name {
	case "WARNING":
		return SeverityWarning
	case "ERROR":
		return SeverityError
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

// Event types.
const (
	EventAuthAttempt        = "authentication_attempt"
	EventAuthSuccess        = "authentication_success"
	EventAuthFailure        = "authentication_failure"
	EventFailedLogin        = "failed_login"
	EventRateLimitExceeded  = "rate_limit_exceeded"
	EventRequestRejected    = "request_rejected"
	EventMaliciousInput     = "malicious_input"
	EventCSRFViolation      = "csrf_violation"
	EventAccessDenied       = "access_denied"
	EventBruteForceDetected = "brute_force_detected"
	EventHighVolumeDetected = "high_volume_detected"
	EventKeyRotation        = "key_rotation"
	EventAPIKeyGenerated    = "api_key_generated"
	EventBlockApplied       = "block_applied"
	EventBlockRemoved       = "block_removed"
)

// Event is a single recorded security event.
type Event struct {
	// ID is a unique event identifier, assigned on record when empty.
	ID string `json:"id"`

	// Type is one of the event type constants.
	Type string `json:"type"`

	// Severity classifies the event.
	Severity Severity `json:"severity"`

	// SubjectID identifies the acting subject, if known.
	SubjectID string `json:"subject_id,omitempty"`

	// ClientAddr is the client network address.
	ClientAddr string `json:"client_addr,omitempty"`

	// ClientAgent is the client user agent string.
	ClientAgent string `json:"client_agent,omitempty"`

	// Timestamp is when the event occurred, assigned on record when
	// zero.
	Timestamp time.Time `json:"timestamp"`

	// Details carries event specific context.
	Details map[string]interface{} `json:"details,omitempty"`
}

// clone returns a copy of the event with its own details map, so
// callers can hold query results without racing the buffer.
func (e *Event) clone() *Event {
	copied := *e
	if e.Details != nil {
		copied.Details = make(map[string]interface{}, len(e.Details))
		for k, v := range e.Details {
			copied.Details[k] = v
		}
	}
	return &copied
}
