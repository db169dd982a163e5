// Package token issues and verifies signed access tokens.
//
// Tokens are RS256 signed JWTs carrying an encrypted subject, so a
// leaked token never exposes the subject identifier in plaintext.
// Verification accepts tokens signed with the previous key pair for a
// grace period after rotation. Failures are reported as exactly two
// errors, expired or invalid, so callers cannot leak verification
// detail to clients.
package token
