package admin

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avsecgw/internal/crypto"
	"github.com/vyrodovalexey/avsecgw/internal/monitor"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
	"github.com/vyrodovalexey/avsecgw/internal/token"
)

// Event query limits.
const (
	// defaultEventLimit applies when a query does not ask for a limit.
	defaultEventLimit = 100

	// maxEventLimit caps what any query may ask for.
	maxEventLimit = 1000
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleEvents returns recorded security events, newest first.
// Supported query parameters: type, severity, subject_id, client_addr,
// since, until, limit.
func (s *Server) handleEvents(c *gin.Context) {
	filter := monitor.Filter{
		Type:       c.Query("type"),
		SubjectID:  c.Query("subject_id"),
		ClientAddr: c.Query("client_addr"),
		Limit:      defaultEventLimit,
	}

	if severity := c.Query("severity"); severity != "" {
		filter.MinSeverity = monitor.ParseSeverity(severity)
	}

	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 timestamp"})
			return
		}
		filter.Since = since
	}

	if raw := c.Query("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "until must be an RFC 3339 timestamp"})
			return
		}
		filter.Until = until
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}
	if filter.Limit > maxEventLimit {
		filter.Limit = maxEventLimit
	}

	events := s.deps.Monitor.Query(filter)
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleSecurityMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Monitor.Snapshot())
}

// blockedEntry is one blocklist entry in API responses.
type blockedEntry struct {
	Identifier   string    `json:"identifier"`
	BlockedUntil time.Time `json:"blocked_until"`
}

func (s *Server) handleBlocked(c *gin.Context) {
	blocked, err := s.deps.Limiter.Blocked(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list blocked identifiers"})
		return
	}

	entries := make([]blockedEntry, 0, len(blocked))
	for identifier, until := range blocked {
		entries = append(entries, blockedEntry{Identifier: identifier, BlockedUntil: until})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Identifier < entries[j].Identifier
	})

	c.JSON(http.StatusOK, gin.H{
		"blocked": entries,
		"count":   len(entries),
	})
}

type blockRequest struct {
	Identifier      string `json:"identifier"`
	DurationSeconds int    `json:"duration_seconds"`
}

func (s *Server) handleBlock(c *gin.Context) {
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier is required"})
		return
	}
	if req.DurationSeconds <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration_seconds must be positive"})
		return
	}

	duration := time.Duration(req.DurationSeconds) * time.Second
	if err := s.deps.Limiter.Block(c.Request.Context(), req.Identifier, duration); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply block"})
		return
	}

	s.deps.Monitor.Record(c.Request.Context(), &monitor.Event{
		Type:       monitor.EventBlockApplied,
		Severity:   monitor.SeverityInfo,
		ClientAddr: c.ClientIP(),
		Details: map[string]interface{}{
			"identifier":       req.Identifier,
			"duration_seconds": req.DurationSeconds,
			"source":           "admin",
		},
	})

	c.JSON(http.StatusOK, gin.H{
		"identifier":    req.Identifier,
		"blocked_until": time.Now().Add(duration),
	})
}

type unblockRequest struct {
	Identifier string `json:"identifier"`
}

func (s *Server) handleUnblock(c *gin.Context) {
	var req unblockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier is required"})
		return
	}

	if err := s.deps.Limiter.Unblock(c.Request.Context(), req.Identifier); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove block"})
		return
	}

	s.deps.Monitor.Record(c.Request.Context(), &monitor.Event{
		Type:       monitor.EventBlockRemoved,
		Severity:   monitor.SeverityInfo,
		ClientAddr: c.ClientIP(),
		Details: map[string]interface{}{
			"identifier": req.Identifier,
			"source":     "admin",
		},
	})

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleRateLimitStatus reports the current window state for an
// identifier without consuming request budget. Query parameters:
// identifier (required), kind, limit, window_seconds.
func (s *Server) handleRateLimitStatus(c *gin.Context) {
	identifier := c.Query("identifier")
	if identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier is required"})
		return
	}

	kind := c.DefaultQuery("kind", "addr")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	windowSeconds, err := strconv.Atoi(c.DefaultQuery("window_seconds", "60"))
	if err != nil || windowSeconds <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "window_seconds must be a positive integer"})
		return
	}

	result := s.deps.Limiter.Peek(identifier, kind, limit, time.Duration(windowSeconds)*time.Second)
	c.JSON(http.StatusOK, gin.H{
		"identifier":          identifier,
		"kind":                kind,
		"allowed":             result.Allowed,
		"limit":               result.Limit,
		"remaining":           result.Remaining,
		"reset_after_seconds": int(result.ResetAfter.Seconds()),
	})
}

type passwordStrengthRequest struct {
	Password string `json:"password"`
}

func (s *Server) handlePasswordStrength(c *gin.Context) {
	var req passwordStrengthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	c.JSON(http.StatusOK, crypto.CheckPasswordStrength(req.Password))
}

func (s *Server) handleAPIKey(c *gin.Context) {
	key, err := s.deps.Crypto.GenerateAPIKey()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate api key"})
		return
	}

	s.deps.Monitor.Record(c.Request.Context(), &monitor.Event{
		Type:       monitor.EventAPIKeyGenerated,
		Severity:   monitor.SeverityInfo,
		ClientAddr: c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{"api_key": key})
}

func (s *Server) handleSessionToken(c *gin.Context) {
	tok, err := s.deps.Crypto.GenerateSessionToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate session token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_token": tok})
}

// handleRotateKeys rotates the RSA key pair. Tokens signed with the
// previous pair keep verifying for the rotation grace period.
func (s *Server) handleRotateKeys(c *gin.Context) {
	if err := s.deps.Vault.Rotate(); err != nil {
		s.logger.Error("key rotation failed", observability.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "key rotation failed"})
		return
	}

	s.deps.Monitor.Record(c.Request.Context(), &monitor.Event{
		Type:       monitor.EventKeyRotation,
		Severity:   monitor.SeverityInfo,
		ClientAddr: c.ClientIP(),
		Details: map[string]interface{}{
			"source": "admin",
		},
	})

	c.JSON(http.StatusOK, gin.H{"status": "rotated"})
}

type issueTokenRequest struct {
	SubjectID string `json:"subject_id"`
}

func (s *Server) handleIssueToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SubjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject_id is required"})
		return
	}

	raw, err := s.deps.Tokens.Issue(c.Request.Context(), req.SubjectID)
	if err != nil {
		s.logger.Error("token issuance failed", observability.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      raw,
		"token_type": "Bearer",
	})
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleVerifyToken(c *gin.Context) {
	var req verifyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	ctx := monitor.ContextWithClient(c.Request.Context(), monitor.Client{
		Addr:  c.ClientIP(),
		Agent: c.Request.UserAgent(),
	})
	claims, err := s.deps.Tokens.Verify(ctx, req.Token)
	if err != nil {
		reason := "invalid token"
		if errors.Is(err, token.ErrTokenExpired) {
			reason = "token expired"
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": reason})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subject_id": claims.SubjectID,
		"token_id":   claims.TokenID,
		"issued_at":  claims.IssuedAt,
		"expires_at": claims.ExpiresAt,
	})
}
