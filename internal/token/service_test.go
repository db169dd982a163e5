package token

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avsecgw/internal/crypto"
	"github.com/vyrodovalexey/avsecgw/internal/keyvault"
	"github.com/vyrodovalexey/avsecgw/internal/monitor"
)

func testDeps(t *testing.T) (*keyvault.Vault, *crypto.Service) {
	t.Helper()
	dir := t.TempDir()
	vault := keyvault.New(&keyvault.Config{
		SymmetricKeyFile: filepath.Join(dir, ".symmetric_key"),
		PrivateKeyFile:   filepath.Join(dir, ".private_key"),
		PublicKeyFile:    filepath.Join(dir, ".public_key"),
		RotationGrace:    time.Minute,
	})
	return vault, crypto.NewService(vault)
}

func testTokenService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	vault, cryptoSvc := testDeps(t)
	return NewService(nil, vault, cryptoSvc, opts...)
}

func TestService_IssueVerify_RoundTrip(t *testing.T) {
	svc := testTokenService(t)
	ctx := context.Background()

	raw, err := svc.Issue(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := svc.Verify(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.SubjectID)
	assert.NotEmpty(t, claims.TokenID)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestService_Issue_SubjectNotInPlaintext(t *testing.T) {
	svc := testTokenService(t)

	raw, err := svc.Issue(context.Background(), "alice@example.com")
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "alice@example.com")
}

func TestService_Issue_EmptySubject(t *testing.T) {
	svc := testTokenService(t)

	_, err := svc.Issue(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptySubject)
}

func TestService_Verify_Expired(t *testing.T) {
	vault, cryptoSvc := testDeps(t)
	svc := NewService(nil, vault, cryptoSvc)
	ctx := context.Background()

	encrypted, err := cryptoSvc.Encrypt("alice")
	require.NoError(t, err)

	privateKey, err := vault.KeyPair()
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	tok, err := jwt.NewBuilder().
		Issuer(DefaultIssuer).
		Audience([]string{DefaultAudience}).
		Subject(encrypted).
		JwtID("test").
		IssuedAt(past).
		Expiration(past.Add(time.Minute)).
		Claim("ver", "1.0").
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, privateKey))
	require.NoError(t, err)

	_, err = svc.Verify(ctx, string(signed))
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestService_Verify_Tampered(t *testing.T) {
	svc := testTokenService(t)
	ctx := context.Background()

	raw, err := svc.Issue(ctx, "alice")
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)

	// Swap the subject for another encrypted value and keep the old
	// signature.
	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"other"}`)) + "." + parts[2]

	_, err = svc.Verify(ctx, tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestService_Verify_Garbage(t *testing.T) {
	svc := testTokenService(t)

	_, err := svc.Verify(context.Background(), "not a token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestService_Verify_WrongIssuer(t *testing.T) {
	vault, cryptoSvc := testDeps(t)
	svc := NewService(nil, vault, cryptoSvc)
	ctx := context.Background()

	encrypted, err := cryptoSvc.Encrypt("alice")
	require.NoError(t, err)

	privateKey, err := vault.KeyPair()
	require.NoError(t, err)

	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer("someone-else").
		Audience([]string{DefaultAudience}).
		Subject(encrypted).
		IssuedAt(now).
		Expiration(now.Add(time.Hour)).
		Claim("ver", "1.0").
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, privateKey))
	require.NoError(t, err)

	_, err = svc.Verify(ctx, string(signed))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestService_Verify_AcrossRotation(t *testing.T) {
	vault, cryptoSvc := testDeps(t)
	svc := NewService(nil, vault, cryptoSvc)
	ctx := context.Background()

	raw, err := svc.Issue(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, vault.Rotate())

	// The old token verifies through the retired key during the grace
	// period.
	claims, err := svc.Verify(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.SubjectID)

	// Tokens issued after rotation use the new key pair.
	fresh, err := svc.Issue(ctx, "bob")
	require.NoError(t, err)

	claims, err = svc.Verify(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.SubjectID)
}

func TestService_Verify_RecordsFailureEvent(t *testing.T) {
	mon := monitor.New()
	svc := testTokenService(t, WithMonitor(mon))

	_, err := svc.Verify(context.Background(), "garbage")
	require.Error(t, err)

	events := mon.Query(monitor.Filter{Type: monitor.EventAuthFailure})
	require.Len(t, events, 1)
	assert.Equal(t, monitor.SeverityWarning, events[0].Severity)
}

func TestService_Verify_EventsCarryClientIdentity(t *testing.T) {
	mon := monitor.New()
	svc := testTokenService(t, WithMonitor(mon))
	ctx := monitor.ContextWithClient(context.Background(), monitor.Client{
		Addr:  "192.0.2.9",
		Agent: "curl/8.0",
	})

	_, err := svc.Verify(ctx, "garbage")
	require.Error(t, err)

	failures := mon.Query(monitor.Filter{Type: monitor.EventAuthFailure})
	require.Len(t, failures, 1)
	assert.Equal(t, "192.0.2.9", failures[0].ClientAddr)
	assert.Equal(t, "curl/8.0", failures[0].ClientAgent)

	raw, err := svc.Issue(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, raw)
	require.NoError(t, err)

	successes := mon.Query(monitor.Filter{Type: monitor.EventAuthSuccess})
	require.Len(t, successes, 1)
	assert.Equal(t, "192.0.2.9", successes[0].ClientAddr)
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	assert.Equal(t, DefaultTTL, cfg.TTL)
	assert.Equal(t, DefaultIssuer, cfg.Issuer)
	assert.Equal(t, DefaultAudience, cfg.Audience)
}

func TestService_Verify_RecordsAttemptAndSuccess(t *testing.T) {
	mon := monitor.New()
	svc := testTokenService(t, WithMonitor(mon))
	ctx := context.Background()

	raw, err := svc.Issue(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, raw)
	require.NoError(t, err)

	attempts := mon.Query(monitor.Filter{Type: monitor.EventAuthAttempt})
	require.Len(t, attempts, 1)

	successes := mon.Query(monitor.Filter{Type: monitor.EventAuthSuccess})
	require.Len(t, successes, 1)
	assert.Equal(t, "alice", successes[0].SubjectID)
	assert.NotEmpty(t, successes[0].Details["token_id"])
}
