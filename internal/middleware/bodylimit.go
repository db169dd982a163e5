package middleware

import (
	"io"
	"mime"
	"net/http"

	"github.com/vyrodovalexey/avsecgw/internal/monitor"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
)

// DefaultMaxBodySize caps request bodies at 10MB.
const DefaultMaxBodySize = 10 << 20

// BodyLimit returns a middleware that rejects request bodies larger
// than maxSize with 413. Bodies without a Content-Length are capped
// while reading.
func BodyLimit(maxSize int64, mon *monitor.Monitor, logger observability.Logger) Middleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxSize {
				logger.Warn("request body too large",
					observability.Int64("content_length", r.ContentLength),
					observability.Int64("max_size", maxSize),
					observability.String("path", r.URL.Path),
				)

				GetMetrics().bodyLimitRejected.Inc()
				recordRejection(r, mon, http.StatusRequestEntityTooLarge, "body too large")

				w.Header().Set(HeaderContentType, ContentTypeJSON)
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_, _ = io.WriteString(w, ErrRequestEntityTooLarge)
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ContentType returns a middleware that rejects write requests whose
// Content-Type is not in the allowed list with 415. Requests without a
// body pass through.
func ContentType(allowed []string, mon *monitor.Monitor, logger observability.Logger) Middleware {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, ct := range allowed {
		allowedSet[ct] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hasBody(r) || len(allowedSet) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get(HeaderContentType))
			if err != nil {
				mediaType = ""
			}

			if _, ok := allowedSet[mediaType]; !ok {
				logger.Warn("unsupported content type",
					observability.String("content_type", mediaType),
					observability.String("path", r.URL.Path),
				)

				GetMetrics().contentTypeRejected.Inc()
				recordRejection(r, mon, http.StatusUnsupportedMediaType, "unsupported content type")

				w.Header().Set(HeaderContentType, ContentTypeJSON)
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = io.WriteString(w, ErrUnsupportedMediaType)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// recordRejection records a request rejection event so that every
// short-circuited response leaves a trace in the event stream.
func recordRejection(r *http.Request, mon *monitor.Monitor, status int, reason string) {
	if mon == nil {
		return
	}

	mon.Record(r.Context(), &monitor.Event{
		Type:        monitor.EventRequestRejected,
		Severity:    monitor.SeverityWarning,
		ClientAddr:  getClientIP(r),
		ClientAgent: r.UserAgent(),
		Details: map[string]interface{}{
			"status": status,
			"reason": reason,
			"path":   r.URL.Path,
		},
	})
}

// hasBody reports whether the request method carries a body that needs
// content type validation.
func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.ContentLength != 0
	default:
		return false
	}
}
