// Package admin exposes the operational HTTP API of the gateway:
// health and Prometheus metrics endpoints, security event queries,
// blocklist management, token issuance and verification, and key
// rotation. The API is intended for operators and trusted internal
// callers, not for the public request path.
package admin
