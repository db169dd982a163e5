// Package sanitize validates and normalizes untrusted input.
//
// Every input passes a malicious pattern scan before any type
// normalization, so encoded traversal sequences and embedded markup
// are rejected rather than laundered into a clean looking value. After
// the scan, the input is normalized according to its declared type:
// emails are validated and lowercased, URLs must be absolute http or
// https, HTML is entity escaped, and free text is stripped of
// non-printable characters and capped in length.
package sanitize
