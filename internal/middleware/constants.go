package middleware

// HTTP header constants.
const (
	// HeaderContentType is the Content-Type header name.
	HeaderContentType = "Content-Type"

	// HeaderRetryAfter is the Retry-After header name.
	HeaderRetryAfter = "Retry-After"

	// HeaderAuthorization is the Authorization header name.
	HeaderAuthorization = "Authorization"

	// HeaderXRequestID is the X-Request-ID header name.
	HeaderXRequestID = "X-Request-ID"

	// HeaderXForwardedFor is the X-Forwarded-For header name.
	HeaderXForwardedFor = "X-Forwarded-For"

	// HeaderXCSRFToken is the X-CSRF-Token header name.
	HeaderXCSRFToken = "X-CSRF-Token"
)

// Content type constants.
const (
	// ContentTypeJSON is the JSON content type.
	ContentTypeJSON = "application/json"

	// ContentTypeFormURLEncoded is the form URL encoded content type.
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"
)

// Error response constants.
const (
	// ErrRateLimitExceeded is the error message for rate limit exceeded.
	ErrRateLimitExceeded = `{"error":"rate limit exceeded"}`

	// ErrInternalServerError is the error message for internal server error.
	ErrInternalServerError = `{"error":"internal server error"}`

	// ErrRequestEntityTooLarge is the error message for request body too large.
	ErrRequestEntityTooLarge = `{"error":"request entity too large"}`

	// ErrUnsupportedMediaType is the error message for unsupported content type.
	ErrUnsupportedMediaType = `{"error":"unsupported media type"}`

	// ErrCSRFTokenInvalid is the error message for missing or invalid CSRF tokens.
	ErrCSRFTokenInvalid = `{"error":"csrf token missing or invalid"}`

	// ErrAccessBlocked is the error message for blocked clients.
	ErrAccessBlocked = `{"error":"access blocked"}`

	// ErrAuthenticationRequired is the error message for missing authentication.
	ErrAuthenticationRequired = `{"error":"authentication required"}`
)
