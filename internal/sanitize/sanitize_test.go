package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_MaliciousInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		category string
	}{
		{
			name:     "sql injection statement terminator",
			input:    `'; DROP TABLE users; --`,
			category: CategoryInjection,
		},
		{
			name:     "union select",
			input:    "1 UNION SELECT password FROM users",
			category: CategoryInjection,
		},
		{
			name:     "boolean tautology",
			input:    "admin' or 1=1",
			category: CategoryInjection,
		},
		{
			name:     "script tag",
			input:    `<script>alert("xss")</script>`,
			category: CategoryMarkup,
		},
		{
			name:     "javascript scheme",
			input:    "javascript:alert(1)",
			category: CategoryMarkup,
		},
		{
			name:     "event handler",
			input:    `<img src=x onerror=alert(1)>`,
			category: CategoryMarkup,
		},
		{
			name:     "path traversal",
			input:    "../../etc/passwd",
			category: CategoryTraversal,
		},
		{
			name:     "encoded path traversal",
			input:    "%2e%2e%2f%2e%2e%2fetc/passwd",
			category: CategoryTraversal,
		},
		{
			name:     "windows path traversal",
			input:    `..\..\windows\system32`,
			category: CategoryTraversal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sanitize(tt.input, TypeText)
			require.Error(t, err)
			assert.True(t, IsMaliciousInput(err))

			var malErr *MaliciousInputError
			require.ErrorAs(t, err, &malErr)
			assert.Equal(t, tt.category, malErr.Category)
		})
	}
}

func TestSanitize_MaliciousBeforeNormalization(t *testing.T) {
	// HTML escaping must not launder markup into a clean value.
	_, err := Sanitize(`<script>document.location="evil"</script>`, TypeHTML)
	require.Error(t, err)
	assert.True(t, IsMaliciousInput(err))
}

func TestSanitize_TooLong(t *testing.T) {
	_, err := Sanitize(strings.Repeat("a", MaxTextLength+1), TypeText)
	assert.ErrorIs(t, err, ErrInputTooLong)

	out, err := Sanitize(strings.Repeat("a", MaxTextLength), TypeText)
	require.NoError(t, err)
	assert.Len(t, out, MaxTextLength)
}

func TestSanitize_Text(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text unchanged",
			input: "hello world",
			want:  "hello world",
		},
		{
			name:  "control characters stripped",
			input: "hello\x00\x1bworld",
			want:  "helloworld",
		},
		{
			name:  "tabs and newlines kept",
			input: "line one\n\tline two",
			want:  "line one\n\tline two",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  padded  ",
			want:  "padded",
		},
		{
			name:  "unicode kept",
			input: "héllo wörld 日本語",
			want:  "héllo wörld 日本語",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitize_Email(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "valid email",
			input: "user@example.com",
			want:  "user@example.com",
		},
		{
			name:  "mixed case lowered",
			input: "User.Name+tag@Example.COM",
			want:  "user.name+tag@example.com",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  user@example.com  ",
			want:  "user@example.com",
		},
		{
			name:    "missing domain",
			input:   "user@",
			wantErr: true,
		},
		{
			name:    "missing tld",
			input:   "user@example",
			wantErr: true,
		},
		{
			name:    "not an email",
			input:   "just text",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Email(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEmail)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitize_URL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "https url",
			input: "https://example.com/path?q=1",
			want:  "https://example.com/path?q=1",
		},
		{
			name:  "http url",
			input: "http://example.com",
			want:  "http://example.com",
		},
		{
			name:    "ftp scheme rejected",
			input:   "ftp://example.com/file",
			wantErr: true,
		},
		{
			name:    "relative url rejected",
			input:   "/just/a/path",
			wantErr: true,
		},
		{
			name:    "missing host",
			input:   "https://",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := URL(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitize_HTML(t *testing.T) {
	got, err := HTML(`Tom & "Jerry" <friends>`)
	require.NoError(t, err)
	assert.Equal(t, "Tom &amp; &#34;Jerry&#34; &lt;friends&gt;", got)
}
