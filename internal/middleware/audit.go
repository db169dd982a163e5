package middleware

import (
	"net/http"
	"time"

	"github.com/vyrodovalexey/avsecgw/internal/crypto"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
)

// Audit returns a middleware that writes a tamper-evident audit
// record for every request. The record is canonicalized and hashed so
// log consumers can detect modified entries.
func Audit(logger observability.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			requestID := observability.RequestIDFromContext(r.Context())

			record := map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"query":       r.URL.RawQuery,
				"status":      rw.status,
				"size":        rw.size,
				"duration_ms": duration.Milliseconds(),
				"client_addr": getClientIP(r),
				"user_agent":  r.UserAgent(),
				"request_id":  requestID,
				"timestamp":   start.UTC().Format(time.RFC3339Nano),
			}
			if claims := ClaimsFromContext(r.Context()); claims != nil {
				record["subject_id"] = claims.SubjectID
			}

			recordHash, err := crypto.AuditHash(record)
			if err != nil {
				logger.Error("failed to hash audit record", observability.Error(err))
				return
			}

			logger.Info("audit",
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.Int("status", rw.status),
				observability.String("client_addr", getClientIP(r)),
				observability.String("request_id", requestID),
				observability.String("record_hash", recordHash),
			)
		})
	}
}
