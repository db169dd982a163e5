package middleware

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/avsecgw/internal/crypto"
	"github.com/vyrodovalexey/avsecgw/internal/monitor"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
)

// CSRFCookieName is the cookie carrying the CSRF token.
const CSRFCookieName = "csrf_token"

// CSRFConfig controls CSRF protection.
type CSRFConfig struct {
	// ExemptPaths are path prefixes that skip CSRF checks, typically
	// health and documentation endpoints.
	ExemptPaths []string `yaml:"exemptPaths"`

	// CookieSecure marks the CSRF cookie as Secure.
	CookieSecure bool `yaml:"cookieSecure"`
}

// DefaultCSRFConfig returns a CSRFConfig with default values.
func DefaultCSRFConfig() *CSRFConfig {
	return &CSRFConfig{
		ExemptPaths: []string{"/health", "/metrics", "/api/docs"},
	}
}

// CSRF returns a middleware implementing double submit cookie CSRF
// protection. Safe methods pass through and receive a token cookie
// when they have none. Unsafe methods must echo the cookie value in
// the X-CSRF-Token header.
func CSRF(cfg *CSRFConfig, cryptoSvc *crypto.Service, mon *monitor.Monitor, logger observability.Logger) Middleware {
	if cfg == nil {
		cfg = DefaultCSRFConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				ensureCSRFCookie(w, r, cfg, cryptoSvc, logger)
				next.ServeHTTP(w, r)
				return
			}

			if isExemptPath(r.URL.Path, cfg.ExemptPaths) {
				next.ServeHTTP(w, r)
				return
			}

			if !validCSRFToken(r) {
				logger.Warn("csrf validation failed",
					observability.String("method", r.Method),
					observability.String("path", r.URL.Path),
					observability.String("client_addr", getClientIP(r)),
				)

				GetMetrics().csrfRejected.Inc()
				if mon != nil {
					mon.Record(r.Context(), &monitor.Event{
						Type:        monitor.EventCSRFViolation,
						Severity:    monitor.SeverityWarning,
						ClientAddr:  getClientIP(r),
						ClientAgent: r.UserAgent(),
						Details:     map[string]interface{}{"path": r.URL.Path},
					})
				}

				w.Header().Set(HeaderContentType, ContentTypeJSON)
				w.WriteHeader(http.StatusForbidden)
				_, _ = io.WriteString(w, ErrCSRFTokenInvalid)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isSafeMethod reports whether the method never changes state.
func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// isExemptPath reports whether the path matches an exempt prefix.
func isExemptPath(path string, exempt []string) bool {
	for _, prefix := range exempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ensureCSRFCookie sets a fresh token cookie when the request has
// none.
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, cfg *CSRFConfig, cryptoSvc *crypto.Service, logger observability.Logger) {
	if _, err := r.Cookie(CSRFCookieName); err == nil {
		return
	}

	tok, err := cryptoSvc.GenerateToken(crypto.APIKeySize)
	if err != nil {
		logger.Error("failed to generate csrf token", observability.Error(err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    tok,
		Path:     "/",
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// validCSRFToken compares the cookie and header tokens in constant
// time.
func validCSRFToken(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	header := r.Header.Get(HeaderXCSRFToken)
	if header == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) == 1
}
