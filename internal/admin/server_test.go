package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avsecgw/internal/crypto"
	"github.com/vyrodovalexey/avsecgw/internal/keyvault"
	"github.com/vyrodovalexey/avsecgw/internal/monitor"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
	"github.com/vyrodovalexey/avsecgw/internal/ratelimit"
	"github.com/vyrodovalexey/avsecgw/internal/token"
)

type fixture struct {
	server  *Server
	monitor *monitor.Monitor
	limiter *ratelimit.Limiter
	tokens  *token.Service
	vault   *keyvault.Vault
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	vault := keyvault.New(&keyvault.Config{
		SymmetricKeyFile: filepath.Join(dir, ".symmetric_key"),
		PrivateKeyFile:   filepath.Join(dir, ".private_key"),
		PublicKeyFile:    filepath.Join(dir, ".public_key"),
		RotationGrace:    time.Minute,
	})
	cryptoSvc := crypto.NewService(vault)
	mon := monitor.New()
	limiter := ratelimit.NewLimiter()
	tokens := token.NewService(nil, vault, cryptoSvc)

	server := NewServer(nil, Deps{
		Monitor: mon,
		Limiter: limiter,
		Crypto:  cryptoSvc,
		Tokens:  tokens,
		Vault:   vault,
	}, observability.NopLogger())

	return &fixture{
		server:  server,
		monitor: mon,
		limiter: limiter,
		tokens:  tokens,
		vault:   vault,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}

func TestEvents(t *testing.T) {
	fx := newFixture(t)
	fx.monitor.Record(context.Background(), &monitor.Event{
		Type:     monitor.EventFailedLogin,
		Severity: monitor.SeverityWarning,
	})
	fx.monitor.Record(context.Background(), &monitor.Event{
		Type:     monitor.EventAuthSuccess,
		Severity: monitor.SeverityInfo,
	})

	rec := fx.do(t, http.MethodGet, "/admin/security/events?type=failed_login", "")

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, float64(1), out["count"])
}

func TestEvents_SeverityFilter(t *testing.T) {
	fx := newFixture(t)
	fx.monitor.Record(context.Background(), &monitor.Event{
		Type:     monitor.EventAuthSuccess,
		Severity: monitor.SeverityInfo,
	})
	fx.monitor.Record(context.Background(), &monitor.Event{
		Type:     monitor.EventFailedLogin,
		Severity: monitor.SeverityWarning,
	})

	rec := fx.do(t, http.MethodGet, "/admin/security/events?severity=WARNING", "")

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, float64(1), out["count"])
}

func TestEvents_InvalidLimit(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/admin/security/events?limit=nope", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverview(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/admin/security/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, float64(100), out["security_score"])
}

func TestBlockFlow(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/admin/security/block",
		`{"identifier":"192.0.2.1","duration_seconds":60}`)
	require.Equal(t, http.StatusOK, rec.Code)

	blocked, err := fx.limiter.IsBlocked(context.Background(), "192.0.2.1")
	require.NoError(t, err)
	assert.True(t, blocked)

	rec = fx.do(t, http.MethodGet, "/admin/security/blocked", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, float64(1), out["count"])

	rec = fx.do(t, http.MethodPost, "/admin/security/unblock", `{"identifier":"192.0.2.1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	blocked, err = fx.limiter.IsBlocked(context.Background(), "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, blocked)

	events := fx.monitor.Query(monitor.Filter{Type: monitor.EventBlockApplied})
	assert.Len(t, events, 1)
	events = fx.monitor.Query(monitor.Filter{Type: monitor.EventBlockRemoved})
	assert.Len(t, events, 1)
}

func TestBlock_Validation(t *testing.T) {
	fx := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing identifier", body: `{"duration_seconds":60}`},
		{name: "missing duration", body: `{"identifier":"192.0.2.1"}`},
		{name: "negative duration", body: `{"identifier":"192.0.2.1","duration_seconds":-1}`},
		{name: "malformed json", body: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := fx.do(t, http.MethodPost, "/admin/security/block", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRateLimitStatus(t *testing.T) {
	fx := newFixture(t)
	fx.limiter.Check(context.Background(), "192.0.2.1", "addr", 10, time.Minute)

	rec := fx.do(t, http.MethodGet,
		"/admin/security/ratelimit/status?identifier=192.0.2.1&kind=addr&limit=10&window_seconds=60", "")

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, true, out["allowed"])
	assert.Equal(t, float64(9), out["remaining"])
}

func TestRateLimitStatus_RequiresIdentifier(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/admin/security/ratelimit/status", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPasswordStrength(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/admin/security/password-strength",
		`{"password":"Str0ng!Passw0rd"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "strong", out["strength"])
	assert.Equal(t, true, out["is_valid"])
}

func TestPasswordStrength_Weak(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/admin/security/password-strength", `{"password":"abc"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "weak", out["strength"])
	assert.Equal(t, false, out["is_valid"])
}

func TestAPIKey(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/admin/security/api-key", "")

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.NotEmpty(t, out["api_key"])

	events := fx.monitor.Query(monitor.Filter{Type: monitor.EventAPIKeyGenerated})
	assert.Len(t, events, 1)
}

func TestSessionToken(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/admin/security/session-token", "")

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.NotEmpty(t, out["session_token"])
}

func TestRotateKeys(t *testing.T) {
	fx := newFixture(t)

	raw, err := fx.tokens.Issue(context.Background(), "alice")
	require.NoError(t, err)

	rec := fx.do(t, http.MethodPost, "/admin/security/rotate-keys", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Tokens signed before rotation keep verifying during the grace
	// period.
	claims, err := fx.tokens.Verify(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.SubjectID)

	events := fx.monitor.Query(monitor.Filter{Type: monitor.EventKeyRotation})
	assert.Len(t, events, 1)
}

func TestIssueAndVerifyToken(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/admin/auth/token", `{"subject_id":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	raw, ok := out["token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, raw)

	body, err := json.Marshal(map[string]string{"token": raw})
	require.NoError(t, err)

	rec = fx.do(t, http.MethodPost, "/admin/auth/verify", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	out = decode(t, rec)
	assert.Equal(t, "alice", out["subject_id"])
}

func TestIssueToken_RequiresSubject(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/admin/auth/token", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyToken_Invalid(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/admin/auth/verify", `{"token":"not-a-token"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestEvents_SinceFilter(t *testing.T) {
	fx := newFixture(t)
	now := time.Now().UTC()
	fx.monitor.Record(context.Background(), &monitor.Event{
		Type:      monitor.EventAuthSuccess,
		Severity:  monitor.SeverityInfo,
		Timestamp: now.Add(-time.Hour),
	})
	fx.monitor.Record(context.Background(), &monitor.Event{
		Type:      monitor.EventAuthSuccess,
		Severity:  monitor.SeverityInfo,
		Timestamp: now,
	})

	since := now.Add(-time.Minute).Format(time.RFC3339)
	rec := fx.do(t, http.MethodGet, "/admin/security/events?since="+since, "")

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, float64(1), out["count"])
}

func TestEvents_InvalidSince(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/admin/security/events?since=yesterday", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvents_UntilFilter(t *testing.T) {
	fx := newFixture(t)
	now := time.Now().UTC()
	fx.monitor.Record(context.Background(), &monitor.Event{
		Type:      monitor.EventAuthSuccess,
		Severity:  monitor.SeverityInfo,
		Timestamp: now.Add(-time.Hour),
	})
	fx.monitor.Record(context.Background(), &monitor.Event{
		Type:      monitor.EventAuthSuccess,
		Severity:  monitor.SeverityInfo,
		Timestamp: now,
	})

	until := now.Add(-time.Minute).Format(time.RFC3339)
	rec := fx.do(t, http.MethodGet, "/admin/security/events?until="+until, "")

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, float64(1), out["count"])
}

func TestEvents_InvalidUntil(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/admin/security/events?until=tomorrow", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
