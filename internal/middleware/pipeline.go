package middleware

import (
	"github.com/vyrodovalexey/avsecgw/internal/crypto"
	"github.com/vyrodovalexey/avsecgw/internal/guard"
	"github.com/vyrodovalexey/avsecgw/internal/monitor"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
)

// PipelineConfig assembles the configuration of the full middleware
// stack.
type PipelineConfig struct {
	SecurityHeaders *SecurityHeadersConfig `yaml:"securityHeaders"`
	CSRF            *CSRFConfig            `yaml:"csrf"`
	Guard           *GuardConfig           `yaml:"guard"`

	// MaxBodySize caps request bodies in bytes.
	MaxBodySize int64 `yaml:"maxBodySize"`

	// AllowedContentTypes restricts write request content types.
	AllowedContentTypes []string `yaml:"allowedContentTypes"`

	// FloodRPS and FloodBurst configure the per-client flood limiter.
	FloodRPS   int `yaml:"floodRps"`
	FloodBurst int `yaml:"floodBurst"`
}

// DefaultPipelineConfig returns a PipelineConfig with default values.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		SecurityHeaders:     DefaultSecurityHeadersConfig(),
		CSRF:                DefaultCSRFConfig(),
		Guard:               &GuardConfig{},
		MaxBodySize:         DefaultMaxBodySize,
		AllowedContentTypes: []string{ContentTypeJSON, ContentTypeFormURLEncoded},
		FloodRPS:            50,
		FloodBurst:          100,
	}
}

// Pipeline builds the canonical middleware stack, outermost first:
// security headers, recovery, request ID, logging, CSRF, flood
// limiting, body limits, content type, guard admission, and audit.
// The returned flood limiter must be stopped on shutdown.
func Pipeline(
	cfg *PipelineConfig,
	g *guard.Guard,
	cryptoSvc *crypto.Service,
	mon *monitor.Monitor,
	logger observability.Logger,
) (Middleware, *FloodLimiter) {
	if cfg == nil {
		cfg = DefaultPipelineConfig()
	}

	fl := NewFloodLimiter(cfg.FloodRPS, cfg.FloodBurst, WithFloodLimiterLogger(logger))
	fl.StartCleanup()

	chain := Chain(
		SecurityHeaders(cfg.SecurityHeaders),
		Recovery(logger),
		RequestID(),
		Logging(logger),
		CSRF(cfg.CSRF, cryptoSvc, mon, logger),
		FloodLimit(fl, mon),
		BodyLimit(cfg.MaxBodySize, mon, logger),
		ContentType(cfg.AllowedContentTypes, mon, logger),
		Guard(g, cfg.Guard, logger),
		Audit(logger),
	)

	return chain, fl
}
