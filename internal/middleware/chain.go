package middleware

import "net/http"

// Middleware is a standard HTTP middleware decorator.
type Middleware func(http.Handler) http.Handler

// Chain composes middleware so the first argument is the outermost
// layer.
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
