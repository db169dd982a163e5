package crypto

import "strings"

// Password strength constants.
const (
	// StrengthMaxScore is the maximum strength score.
	StrengthMaxScore = 5

	// StrengthMinValid is the minimum score considered valid.
	StrengthMinValid = 3

	// commonPasswordPenalty is subtracted when the password is on the
	// denylist.
	commonPasswordPenalty = 2
)

// Strength verdicts.
const (
	VerdictWeak   = "weak"
	VerdictMedium = "medium"
	VerdictStrong = "strong"
)

// commonPasswords is a small denylist of passwords that force a weak
// verdict.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"123456":      {},
	"qwerty":      {},
	"abc123":      {},
	"password123": {},
}

// StrengthResult is the outcome of a password strength check.
type StrengthResult struct {
	// Score is the achieved score, floored at 0.
	Score int `json:"score"`

	// MaxScore is the maximum achievable score.
	MaxScore int `json:"max_score"`

	// Verdict is weak, medium, or strong.
	Verdict string `json:"strength"`

	// Feedback lists the rules the password failed.
	Feedback []string `json:"feedback"`

	// Valid reports whether the password is acceptable.
	Valid bool `json:"is_valid"`
}

// CheckPasswordStrength scores a password against five independent
// rules: minimum length, uppercase, lowercase, digit, and symbol. A
// password on the common-password denylist takes a penalty and is
// always reported weak and invalid.
func CheckPasswordStrength(password string) *StrengthResult {
	score := 0
	var feedback []string

	if len(password) >= 8 {
		score++
	} else {
		feedback = append(feedback, "password should be at least 8 characters long")
	}

	if strings.ContainsFunc(password, isUpper) {
		score++
	} else {
		feedback = append(feedback, "password should contain at least one uppercase letter")
	}

	if strings.ContainsFunc(password, isLower) {
		score++
	} else {
		feedback = append(feedback, "password should contain at least one lowercase letter")
	}

	if strings.ContainsFunc(password, isDigit) {
		score++
	} else {
		feedback = append(feedback, "password should contain at least one digit")
	}

	if strings.ContainsAny(password, `!@#$%^&*(),.?":{}|<>`) {
		score++
	} else {
		feedback = append(feedback, "password should contain at least one special character")
	}

	common := false
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		common = true
		score -= commonPasswordPenalty
		feedback = append(feedback, "password is too common")
	}

	if score < 0 {
		score = 0
	}

	verdict := VerdictStrong
	switch {
	case common || score < StrengthMinValid:
		verdict = VerdictWeak
	case score < 4:
		verdict = VerdictMedium
	}

	return &StrengthResult{
		Score:    score,
		MaxScore: StrengthMaxScore,
		Verdict:  verdict,
		Feedback: feedback,
		Valid:    !common && score >= StrengthMinValid,
	}
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }
