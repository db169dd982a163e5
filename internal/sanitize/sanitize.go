package sanitize

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// MaxTextLength is the maximum accepted input length in characters.
const MaxTextLength = 10_000

// Type declares how an input should be normalized after the malicious
// pattern scan.
type Type string

// Input types.
const (
	TypeText  Type = "text"
	TypeEmail Type = "email"
	TypeURL   Type = "url"
	TypeHTML  Type = "html"
)

// emailPattern validates the overall shape of an email address.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Sanitize validates input against the malicious pattern families and
// normalizes it according to its type. The pattern scan runs before
// normalization so that dangerous content is rejected, not rewritten.
func Sanitize(input string, inputType Type) (string, error) {
	if len([]rune(input)) > MaxTextLength {
		return "", ErrInputTooLong
	}

	if err := scanMalicious(input); err != nil {
		return "", err
	}

	switch inputType {
	case TypeEmail:
		return sanitizeEmail(input)
	case TypeURL:
		return sanitizeURL(input)
	case TypeHTML:
		return html.EscapeString(input), nil
	default:
		return sanitizeText(input), nil
	}
}

// Text sanitizes free-form text.
func Text(input string) (string, error) {
	return Sanitize(input, TypeText)
}

// Email validates and normalizes an email address.
func Email(input string) (string, error) {
	return Sanitize(input, TypeEmail)
}

// URL validates an absolute http or https URL.
func URL(input string) (string, error) {
	return Sanitize(input, TypeURL)
}

// HTML escapes markup so the input is safe to embed in a page.
func HTML(input string) (string, error) {
	return Sanitize(input, TypeHTML)
}

// sanitizeEmail validates the address shape and lowercases it.
func sanitizeEmail(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if !emailPattern.MatchString(trimmed) {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(trimmed), nil
}

// sanitizeURL requires an absolute URL with an http or https scheme
// and a host.
func sanitizeURL(input string) (string, error) {
	trimmed := strings.TrimSpace(input)

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrInvalidURL
	}
	if parsed.Host == "" {
		return "", ErrInvalidURL
	}

	return parsed.String(), nil
}

// sanitizeText strips non-printable characters, keeping tabs and line
// breaks, and trims surrounding whitespace.
func sanitizeText(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, input)

	return strings.TrimSpace(cleaned)
}
