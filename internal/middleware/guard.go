package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/avsecgw/internal/guard"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
)

// GuardConfig controls the guard admission middleware.
type GuardConfig struct {
	// ProtectedPaths are path prefixes that require a valid bearer
	// token.
	ProtectedPaths []string `yaml:"protectedPaths"`
}

// Guard returns a middleware that runs every request through the
// guard's admission checks. Verified claims are stored in the request
// context for handlers.
func Guard(g *guard.Guard, cfg *GuardConfig, logger observability.Logger) Middleware {
	if cfg == nil {
		cfg = &GuardConfig{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := &guard.Request{
				ClientAddr:  getClientIP(r),
				ClientAgent: r.UserAgent(),
				BearerToken: bearerToken(r),
				RequireAuth: isProtectedPath(r.URL.Path, cfg.ProtectedPaths),
			}

			decision := g.Evaluate(r.Context(), req)
			if !decision.Allowed {
				logger.Warn("request rejected",
					observability.String("client_addr", req.ClientAddr),
					observability.String("path", r.URL.Path),
					observability.Int("status", decision.StatusCode),
					observability.String("reason", decision.Reason),
				)

				GetMetrics().guardRejected.WithLabelValues(strconv.Itoa(decision.StatusCode)).Inc()

				if decision.RetryAfter > 0 {
					w.Header().Set(HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(decision)))
				}
				writeJSONError(w, decision.StatusCode, decision.Reason)
				return
			}

			if decision.Claims != nil {
				r = r.WithContext(ContextWithClaims(r.Context(), decision.Claims))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds the retry delay up to whole seconds so the
// client never retries early.
func retryAfterSeconds(decision *guard.Decision) int {
	secs := int(decision.RetryAfter.Seconds())
	if decision.RetryAfter > 0 && secs == 0 {
		secs = 1
	}
	return secs
}

// bearerToken extracts the bearer token from the Authorization
// header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get(HeaderAuthorization)
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// isProtectedPath reports whether the path matches a protected
// prefix.
func isProtectedPath(path string, protected []string) bool {
	for _, prefix := range protected {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// writeJSONError writes a JSON error body with the given status.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set(HeaderContentType, ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
