package monitor

import "context"

type clientContextKey struct{}

// Client identifies the network peer an operation runs on behalf of.
// Callers that hold the request attach it to the context so that
// events recorded further down the call chain stay attributable to an
// address.
type Client struct {
	// Addr is the client network address.
	Addr string

	// Agent is the client user agent string.
	Agent string
}

// ContextWithClient returns a context carrying the client identity.
func ContextWithClient(ctx context.Context, client Client) context.Context {
	return context.WithValue(ctx, clientContextKey{}, client)
}

// ClientFromContext returns the client identity attached to the
// context, if any.
func ClientFromContext(ctx context.Context) (Client, bool) {
	client, ok := ctx.Value(clientContextKey{}).(Client)
	return client, ok
}
