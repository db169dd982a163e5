package token

import (
	"context"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vyrodovalexey/avsecgw/internal/crypto"
	"github.com/vyrodovalexey/avsecgw/internal/keyvault"
	"github.com/vyrodovalexey/avsecgw/internal/monitor"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
)

// Token format constants.
const (
	// DefaultIssuer is the iss claim value.
	DefaultIssuer = "avsecgw"

	// DefaultAudience is the aud claim value.
	DefaultAudience = "avsecgw-client"

	// DefaultTTL is the token lifetime when none is configured.
	DefaultTTL = 30 * time.Minute

	// formatVersion is the private ver claim, bumped when the token
	// layout changes.
	formatVersion = "1.0"
)

// Config holds token service configuration.
type Config struct {
	// TTL is the token lifetime.
	TTL time.Duration `yaml:"ttl"`

	// Issuer overrides the iss claim.
	Issuer string `yaml:"issuer"`

	// Audience overrides the aud claim.
	Audience string `yaml:"audience"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		TTL:      DefaultTTL,
		Issuer:   DefaultIssuer,
		Audience: DefaultAudience,
	}
}

// SetDefaults fills in zero fields with default values.
func (c *Config) SetDefaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Issuer == "" {
		c.Issuer = DefaultIssuer
	}
	if c.Audience == "" {
		c.Audience = DefaultAudience
	}
}

// Claims is the verified content of a token.
type Claims struct {
	// SubjectID is the decrypted subject identifier.
	SubjectID string

	// TokenID is the jti claim.
	TokenID string

	// IssuedAt is when the token was issued.
	IssuedAt time.Time

	// ExpiresAt is when the token expires.
	ExpiresAt time.Time
}

// Service issues and verifies RS256 signed tokens using the vault's
// key pair.
type Service struct {
	config  *Config
	vault   *keyvault.Vault
	crypto  *crypto.Service
	monitor *monitor.Monitor
	logger  observability.Logger
}

// Option is a functional option for the Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger observability.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMonitor sets the security monitor that receives token events.
func WithMonitor(m *monitor.Monitor) Option {
	return func(s *Service) {
		s.monitor = m
	}
}

// NewService creates a new token service.
func NewService(config *Config, vault *keyvault.Vault, cryptoSvc *crypto.Service, opts ...Option) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	config.SetDefaults()

	s := &Service{
		config: config,
		vault:  vault,
		crypto: cryptoSvc,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Issue creates a signed token for the subject. The subject is
// encrypted before it is embedded, so the sub claim carries no
// plaintext identifier.
func (s *Service) Issue(ctx context.Context, subjectID string) (string, error) {
	if subjectID == "" {
		return "", ErrEmptySubject
	}

	encryptedSubject, err := s.crypto.Encrypt(subjectID)
	if err != nil {
		return "", err
	}

	privateKey, err := s.vault.KeyPair()
	if err != nil {
		return "", err
	}

	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer(s.config.Issuer).
		Audience([]string{s.config.Audience}).
		Subject(encryptedSubject).
		JwtID(uuid.NewString()).
		IssuedAt(now).
		Expiration(now.Add(s.config.TTL)).
		Claim("ver", formatVersion).
		Build()
	if err != nil {
		return "", err
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, privateKey))
	if err != nil {
		return "", err
	}

	s.logger.Debug("token issued",
		observability.String("token_id", tok.JwtID()),
	)

	return string(signed), nil
}

// Verify checks the token signature and claims and returns the
// decrypted subject. During a rotation grace period, tokens signed
// with the retired key pair still verify.
func (s *Service) Verify(ctx context.Context, raw string) (*Claims, error) {
	s.recordEvent(ctx, monitor.EventAuthAttempt, monitor.SeverityInfo, "", nil)

	privateKey, err := s.vault.KeyPair()
	if err != nil {
		return nil, ErrTokenInvalid
	}

	keys := []*rsa.PublicKey{&privateKey.PublicKey}
	if retired := s.vault.RetiredPublicKey(); retired != nil {
		keys = append(keys, retired)
	}

	tok, err := s.parseWithKeys(raw, keys)
	if err != nil {
		s.recordEvent(ctx, monitor.EventAuthFailure, monitor.SeverityWarning, "", map[string]interface{}{
			"reason": verifyFailureReason(err),
		})
		return nil, err
	}

	subjectID, err := s.crypto.Decrypt(tok.Subject())
	if err != nil {
		s.recordEvent(ctx, monitor.EventAuthFailure, monitor.SeverityWarning, "", map[string]interface{}{
			"reason": "subject decryption failed",
		})
		return nil, ErrTokenInvalid
	}

	s.recordEvent(ctx, monitor.EventAuthSuccess, monitor.SeverityInfo, subjectID, map[string]interface{}{
		"token_id": tok.JwtID(),
	})

	return &Claims{
		SubjectID: subjectID,
		TokenID:   tok.JwtID(),
		IssuedAt:  tok.IssuedAt(),
		ExpiresAt: tok.Expiration(),
	}, nil
}

// parseWithKeys attempts verification against each public key in
// order. Expiry is reported as soon as it is established, signature
// and claim failures collapse into ErrTokenInvalid.
func (s *Service) parseWithKeys(raw string, keys []*rsa.PublicKey) (jwt.Token, error) {
	for _, key := range keys {
		tok, err := jwt.Parse([]byte(raw),
			jwt.WithKey(jwa.RS256, key),
			jwt.WithValidate(true),
			jwt.WithIssuer(s.config.Issuer),
			jwt.WithAudience(s.config.Audience),
			jwt.WithClaimValue("ver", formatVersion),
		)
		if err == nil {
			return tok, nil
		}
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, ErrTokenExpired
		}
	}

	return nil, ErrTokenInvalid
}

// verifyFailureReason maps a verification error to a stable reason
// string for event details.
func verifyFailureReason(err error) string {
	if errors.Is(err, ErrTokenExpired) {
		return "expired"
	}
	return "invalid"
}

// recordEvent forwards a token event to the monitor when one is
// configured. The client identity is taken from the context when the
// caller attached one.
func (s *Service) recordEvent(ctx context.Context, eventType string, severity monitor.Severity, subjectID string, details map[string]interface{}) {
	if s.monitor == nil {
		return
	}

	event := &monitor.Event{
		Type:      eventType,
		Severity:  severity,
		SubjectID: subjectID,
		Details:   details,
	}
	if client, ok := monitor.ClientFromContext(ctx); ok {
		event.ClientAddr = client.Addr
		event.ClientAgent = client.Agent
	}

	s.monitor.Record(ctx, event)
}
