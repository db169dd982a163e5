// Package middleware provides the HTTP middleware stack of the
// security gateway.
//
// Middleware are plain func(http.Handler) http.Handler decorators and
// compose with Chain. The canonical stack order is security headers,
// recovery, request ID, logging, CSRF, flood limiting, body limits,
// guard admission, and audit, so that every response carries the
// security headers, panics are always converted to JSON errors, and
// audit records observe the final status code.
package middleware
