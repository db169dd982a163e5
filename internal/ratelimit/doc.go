// Package ratelimit implements sliding window rate limiting with
// penalty escalation and an explicit blocklist.
//
// Every check is scoped by an identifier (client address or subject)
// and a kind (the protected operation class), so the same client can
// carry independent windows for login attempts, API calls, and message
// sends. When a window overflows, the limiter pads the window with
// synthetic future timestamps so that the offender stays rejected for
// a penalty period instead of sliding back in immediately.
//
// The blocklist is a separate mechanism for administrative and
// automated blocks. It is backed by a pluggable store so deployments
// can share block state through Redis.
package ratelimit
