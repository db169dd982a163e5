// Package crypto provides the gateway's cryptographic primitives:
// authenticated symmetric encryption for sensitive claims, slow salted
// password hashing, secure random token generation, canonical audit
// hashing for tamper evidence, and password strength scoring.
package crypto
