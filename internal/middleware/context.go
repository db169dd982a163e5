package middleware

import (
	"context"

	"github.com/vyrodovalexey/avsecgw/internal/token"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// ContextWithClaims stores verified token claims in the context.
func ContextWithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the verified claims, or nil when the
// request was not authenticated.
func ClaimsFromContext(ctx context.Context) *token.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*token.Claims)
	return claims
}
