package guard

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/vyrodovalexey/avsecgw/internal/monitor"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
	"github.com/vyrodovalexey/avsecgw/internal/ratelimit"
	"github.com/vyrodovalexey/avsecgw/internal/sanitize"
	"github.com/vyrodovalexey/avsecgw/internal/token"
)

// Rate limit kinds used by the guard.
const (
	KindAddr    = "addr"
	KindSubject = "subject"
)

// Config holds guard configuration.
type Config struct {
	// AddrLimit is the per-address request budget per window.
	AddrLimit int `yaml:"addrLimit"`

	// AddrWindow is the per-address window size.
	AddrWindow time.Duration `yaml:"addrWindow"`

	// SubjectLimit is the per-subject request budget per window.
	SubjectLimit int `yaml:"subjectLimit"`

	// SubjectWindow is the per-subject window size.
	SubjectWindow time.Duration `yaml:"subjectWindow"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		AddrLimit:     100,
		AddrWindow:    time.Minute,
		SubjectLimit:  60,
		SubjectWindow: time.Minute,
	}
}

// SetDefaults fills in zero fields with default values.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.AddrLimit <= 0 {
		c.AddrLimit = d.AddrLimit
	}
	if c.AddrWindow <= 0 {
		c.AddrWindow = d.AddrWindow
	}
	if c.SubjectLimit <= 0 {
		c.SubjectLimit = d.SubjectLimit
	}
	if c.SubjectWindow <= 0 {
		c.SubjectWindow = d.SubjectWindow
	}
}

// Field is one untrusted input to validate.
type Field struct {
	// Name identifies the field in errors and sanitized output.
	Name string

	// Value is the raw input.
	Value string

	// Type selects the normalization applied after the malicious
	// pattern scan.
	Type sanitize.Type
}

// Request describes one inbound request to evaluate.
type Request struct {
	// ClientAddr is the client network address. Required.
	ClientAddr string

	// ClientAgent is the client user agent string.
	ClientAgent string

	// SubjectID is the acting subject when already known. When empty
	// and a bearer token verifies, the token subject is used for the
	// subject window on subsequent requests.
	SubjectID string

	// BearerToken is the presented access token, if any.
	BearerToken string

	// RequireAuth rejects the request when no valid bearer token is
	// presented.
	RequireAuth bool

	// Fields are the untrusted inputs to sanitize.
	Fields []Field
}

// Decision is the outcome of evaluating a request.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// StatusCode is the HTTP status to return when not allowed.
	StatusCode int

	// Reason is a stable, client-safe explanation.
	Reason string

	// RetryAfter is set on rate limit rejections.
	RetryAfter time.Duration

	// Claims holds the verified token claims when a bearer token was
	// presented and verified.
	Claims *token.Claims

	// Sanitized holds the normalized field values by name when the
	// request was allowed.
	Sanitized map[string]string
}

// Guard evaluates requests against the security layers.
type Guard struct {
	mu      sync.RWMutex
	config  *Config
	limiter *ratelimit.Limiter
	tokens  *token.Service
	monitor *monitor.Monitor
	logger  observability.Logger
}

// Option is a functional option for the Guard.
type Option func(*Guard)

// WithLogger sets the logger for the guard.
func WithLogger(logger observability.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithMonitor sets the security monitor that receives guard events.
func WithMonitor(m *monitor.Monitor) Option {
	return func(g *Guard) {
		g.monitor = m
	}
}

// New creates a new guard.
func New(config *Config, limiter *ratelimit.Limiter, tokens *token.Service, opts ...Option) *Guard {
	if config == nil {
		config = DefaultConfig()
	}
	config.SetDefaults()

	g := &Guard{
		config:  config,
		limiter: limiter,
		tokens:  tokens,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// UpdateConfig replaces the rate limit windows at runtime, used for
// configuration reloads. Nil or zero fields fall back to defaults.
func (g *Guard) UpdateConfig(config *Config) {
	if config == nil {
		return
	}
	config.SetDefaults()

	g.mu.Lock()
	g.config = config
	g.mu.Unlock()
}

// limits returns the current window configuration.
func (g *Guard) limits() *Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.config
}

// Evaluate runs the admission checks in order and returns the first
// failure, or an allowing decision carrying the verified claims and
// sanitized fields.
func (g *Guard) Evaluate(ctx context.Context, req *Request) *Decision {
	ctx = monitor.ContextWithClient(ctx, monitor.Client{
		Addr:  req.ClientAddr,
		Agent: req.ClientAgent,
	})

	if decision := g.checkBlocklist(ctx, req); decision != nil {
		return decision
	}
	if decision := g.checkWindows(ctx, req); decision != nil {
		return decision
	}

	sanitized, decision := g.sanitizeFields(ctx, req)
	if decision != nil {
		return decision
	}

	claims, decision := g.verifyToken(ctx, req)
	if decision != nil {
		return decision
	}

	return &Decision{
		Allowed:   true,
		Claims:    claims,
		Sanitized: sanitized,
	}
}

// checkBlocklist rejects requests from blocked addresses or subjects.
func (g *Guard) checkBlocklist(ctx context.Context, req *Request) *Decision {
	for _, identifier := range []string{req.ClientAddr, req.SubjectID} {
		if identifier == "" {
			continue
		}

		blocked, err := g.limiter.IsBlocked(ctx, identifier)
		if err != nil {
			g.logger.Error("blocklist lookup failed",
				observability.String("identifier", identifier),
				observability.Error(err),
			)
			continue
		}
		if !blocked {
			continue
		}

		g.recordEvent(ctx, req, monitor.EventAccessDenied, monitor.SeverityWarning, map[string]interface{}{
			"identifier": identifier,
		})

		return &Decision{
			StatusCode: http.StatusForbidden,
			Reason:     "access blocked",
		}
	}

	return nil
}

// checkWindows consumes the address window and, when a subject is
// known, the subject window.
func (g *Guard) checkWindows(ctx context.Context, req *Request) *Decision {
	cfg := g.limits()

	result := g.limiter.Check(ctx, req.ClientAddr, KindAddr, cfg.AddrLimit, cfg.AddrWindow)
	if !result.Allowed {
		return g.rateLimited(ctx, req, KindAddr, result)
	}

	if req.SubjectID != "" {
		result = g.limiter.Check(ctx, req.SubjectID, KindSubject, cfg.SubjectLimit, cfg.SubjectWindow)
		if !result.Allowed {
			return g.rateLimited(ctx, req, KindSubject, result)
		}
	}

	return nil
}

// rateLimited builds a 429 decision and records the event.
func (g *Guard) rateLimited(ctx context.Context, req *Request, kind string, result *ratelimit.Result) *Decision {
	g.recordEvent(ctx, req, monitor.EventRateLimitExceeded, monitor.SeverityWarning, map[string]interface{}{
		"kind":                kind,
		"limit":               result.Limit,
		"retry_after_seconds": int(result.RetryAfter.Seconds()),
	})

	return &Decision{
		StatusCode: http.StatusTooManyRequests,
		Reason:     "rate limit exceeded",
		RetryAfter: result.RetryAfter,
	}
}

// sanitizeFields validates all declared fields. The first malicious or
// invalid field rejects the request.
func (g *Guard) sanitizeFields(ctx context.Context, req *Request) (map[string]string, *Decision) {
	if len(req.Fields) == 0 {
		return nil, nil
	}

	sanitized := make(map[string]string, len(req.Fields))
	for _, field := range req.Fields {
		value, err := sanitize.Sanitize(field.Value, field.Type)
		if err != nil {
			severity := monitor.SeverityWarning
			if sanitize.IsMaliciousInput(err) {
				severity = monitor.SeverityError
			}

			g.recordEvent(ctx, req, monitor.EventMaliciousInput, severity, map[string]interface{}{
				"field": field.Name,
			})

			return nil, &Decision{
				StatusCode: http.StatusBadRequest,
				Reason:     "invalid input: " + field.Name,
			}
		}
		sanitized[field.Name] = value
	}

	return sanitized, nil
}

// verifyToken verifies the bearer token when one is presented or
// required.
func (g *Guard) verifyToken(ctx context.Context, req *Request) (*token.Claims, *Decision) {
	if req.BearerToken == "" {
		if req.RequireAuth {
			return nil, &Decision{
				StatusCode: http.StatusUnauthorized,
				Reason:     "authentication required",
			}
		}
		return nil, nil
	}

	claims, err := g.tokens.Verify(ctx, req.BearerToken)
	if err != nil {
		reason := "invalid token"
		if errors.Is(err, token.ErrTokenExpired) {
			reason = "token expired"
		}

		g.recordEvent(ctx, req, monitor.EventFailedLogin, monitor.SeverityWarning, map[string]interface{}{
			"reason": reason,
		})

		return nil, &Decision{
			StatusCode: http.StatusUnauthorized,
			Reason:     reason,
		}
	}

	return claims, nil
}

// recordEvent forwards a guard event to the monitor when one is
// configured.
func (g *Guard) recordEvent(ctx context.Context, req *Request, eventType string, severity monitor.Severity, details map[string]interface{}) {
	if g.monitor == nil {
		return
	}

	g.monitor.Record(ctx, &monitor.Event{
		Type:        eventType,
		Severity:    severity,
		SubjectID:   req.SubjectID,
		ClientAddr:  req.ClientAddr,
		ClientAgent: req.ClientAgent,
		Details:     details,
	})
}
