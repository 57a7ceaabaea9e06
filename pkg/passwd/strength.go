package passwd

import (
	"strings"
)

// Requirements are the five base requirements a password must meet to be
// considered valid, independent of its score.
type Requirements struct {
	MinLength      bool `json:"minLength"`
	HasUppercase   bool `json:"hasUppercase"`
	HasLowercase   bool `json:"hasLowercase"`
	HasNumber      bool `json:"hasNumber"`
	HasSpecialChar bool `json:"hasSpecialChar"`
}

// StrengthResult is the outcome of ValidateStrength. Score is 0-100; Valid
// only depends on Requirements, never on Score.
type StrengthResult struct {
	Valid        bool         `json:"valid"`
	Score        int          `json:"score"`
	Feedback     []string     `json:"feedback"`
	Requirements Requirements `json:"requirements"`
}

// MinLength is the minimum acceptable password length.
const MinLength = 8

var commonPatterns = []string{
	"password",
	"123456",
	"qwerty",
	"admin",
	"letmein",
	"welcome",
	"abc123",
}

// ValidateStrength scores a password and reports which requirements it meets.
// Length and character-class coverage add points, length tiers and extra
// digits/specials add bonuses, dictionary substrings and sequential or
// repeated runs subtract.
func ValidateStrength(password string) StrengthResult {
	var feedback []string
	score := 0

	req := Requirements{
		MinLength:      len(password) >= MinLength,
		HasUppercase:   strings.ContainsAny(password, upperChars),
		HasLowercase:   strings.ContainsAny(password, lowerChars),
		HasNumber:      strings.ContainsAny(password, digitChars),
		HasSpecialChar: strings.ContainsAny(password, specialChars),
	}

	if !req.MinLength {
		feedback = append(feedback, "Password must be at least 8 characters long")
	} else {
		score += 20
		if len(password) >= 12 {
			score += 10
		}
		if len(password) >= 16 {
			score += 10
		}
	}

	if !req.HasUppercase {
		feedback = append(feedback, "Password must contain at least one uppercase letter")
	} else {
		score += 15
	}
	if !req.HasLowercase {
		feedback = append(feedback, "Password must contain at least one lowercase letter")
	} else {
		score += 15
	}
	if !req.HasNumber {
		feedback = append(feedback, "Password must contain at least one number")
	} else {
		score += 15
	}
	if !req.HasSpecialChar {
		feedback = append(feedback, "Password must contain at least one special character (@$!%*?&)")
	} else {
		score += 15
	}

	if countAny(password, digitChars) >= 2 {
		score += 5
	}
	if countAny(password, specialChars) >= 2 {
		score += 5
	}

	lower := strings.ToLower(password)
	for _, pat := range commonPatterns {
		if strings.Contains(lower, pat) {
			score -= 20
			feedback = append(feedback, "Password contains common patterns or dictionary words")
			break
		}
	}

	if hasSequentialRun(lower) {
		score -= 10
		feedback = append(feedback, "Avoid sequential characters or numbers")
	}

	if hasRepeatedRun(password) {
		score -= 10
		feedback = append(feedback, "Avoid repeated characters")
	}

	score = max(0, min(100, score))

	valid := req.MinLength && req.HasUppercase && req.HasLowercase &&
		req.HasNumber && req.HasSpecialChar

	if valid && len(feedback) == 0 {
		switch {
		case score >= 90:
			feedback = append(feedback, "Excellent password strength!")
		case score >= 70:
			feedback = append(feedback, "Good password strength")
		default:
			feedback = append(feedback, "Password meets minimum requirements")
		}
	}

	return StrengthResult{
		Valid:        valid,
		Score:        score,
		Feedback:     feedback,
		Requirements: req,
	}
}

func countAny(s, set string) int {
	n := 0
	for i := range len(s) {
		if strings.IndexByte(set, s[i]) >= 0 {
			n++
		}
	}
	return n
}

// hasSequentialRun reports three consecutive ascending letters or digits
// anywhere in s (case already folded by the caller).
func hasSequentialRun(s string) bool {
	for i := 0; i+2 < len(s); i++ {
		a, b, c := s[i], s[i+1], s[i+2]
		alpha := a >= 'a' && c <= 'z'
		digit := a >= '0' && c <= '9'
		if (alpha || digit) && b == a+1 && c == b+1 {
			return true
		}
	}
	return false
}

// hasRepeatedRun reports the same byte three or more times in a row.
func hasRepeatedRun(s string) bool {
	for i := 0; i+2 < len(s); i++ {
		if s[i] == s[i+1] && s[i] == s[i+2] {
			return true
		}
	}
	return false
}
