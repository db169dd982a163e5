// Package guard combines the blocklist, rate limiter, input
// sanitizer, and token service into a single request admission
// decision.
//
// Checks run in a fixed order: the blocklist first, then the client
// address window, then the subject window, then input sanitization,
// and finally bearer token verification. The first failing check
// decides the outcome, so a blocked client never consumes window
// budget and malicious input is rejected before any authentication
// work happens for it.
package guard
