package sanitize

import "regexp"

// Pattern family categories reported in MaliciousInputError.
const (
	CategoryInjection = "injection"
	CategoryMarkup    = "markup"
	CategoryTraversal = "traversal"
)

// injectionPatterns match SQL injection attempts. Matching is
// case-insensitive and keyword pairs are matched across intervening
// text.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunion\b.*\bselect\b`),
	regexp.MustCompile(`(?i)\bselect\b.*\bfrom\b`),
	regexp.MustCompile(`(?i)\binsert\b.*\binto\b`),
	regexp.MustCompile(`(?i)\bdelete\b.*\bfrom\b`),
	regexp.MustCompile(`(?i)\bdrop\b.*\b(table|database)\b`),
	regexp.MustCompile(`(?i)\bupdate\b.*\bset\b`),
	regexp.MustCompile(`(?i)\bexec(ute)?\b.*\(`),
	regexp.MustCompile(`(?i)('|")\s*;\s*`),
	regexp.MustCompile(`(?i)--\s*$`),
	regexp.MustCompile(`(?i)\bor\b\s+\d+\s*=\s*\d+`),
}

// markupPatterns match script and markup injection attempts.
var markupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)<\s*iframe`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)vbscript\s*:`),
	regexp.MustCompile(`(?i)data\s*:\s*text/html`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
	regexp.MustCompile(`(?i)<\s*object`),
	regexp.MustCompile(`(?i)<\s*embed`),
}

// traversalPatterns match path traversal attempts, including
// percent-encoded variants.
var traversalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\./`),
	regexp.MustCompile(`\.\.\\`),
	regexp.MustCompile(`(?i)%2e%2e%2f`),
	regexp.MustCompile(`(?i)%2e%2e%5c`),
	regexp.MustCompile(`(?i)\.\.%2f`),
	regexp.MustCompile(`(?i)\.\.%5c`),
	regexp.MustCompile(`(?i)%252e%252e`),
}

// scanMalicious checks the input against all pattern families and
// returns an error naming the first family that matches.
func scanMalicious(input string) error {
	for _, p := range injectionPatterns {
		if p.MatchString(input) {
			return NewMaliciousInputError(CategoryInjection)
		}
	}
	for _, p := range markupPatterns {
		if p.MatchString(input) {
			return NewMaliciousInputError(CategoryMarkup)
		}
	}
	for _, p := range traversalPatterns {
		if p.MatchString(input) {
			return NewMaliciousInputError(CategoryTraversal)
		}
	}
	return nil
}
