package token

import "errors"

var (
	// ErrTokenExpired indicates the token was well formed and signed
	// but is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the token failed verification for any
	// reason other than expiry. The cause is deliberately not exposed.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrEmptySubject indicates an issue request without a subject.
	ErrEmptySubject = errors.New("subject must not be empty")
)
