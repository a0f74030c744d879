package security

import (
	"fmt"
	"strings"
)

const specialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// PasswordPolicy holds the configurable strength rules applied to every new
// password, whether it arrives via registration, change, or reset.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   true,
	}
}

// PolicyResult itemizes the violated rules. Score is advisory only; Valid is
// what gates acceptance.
type PolicyResult struct {
	Valid      bool
	Violations []string
	Score      int
}

func (p PasswordPolicy) Validate(password string) PolicyResult {
	var violations []string

	if len(password) < p.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters long", p.MinLength))
	}
	if p.RequireUppercase && !strings.ContainsFunc(password, isUpper) {
		violations = append(violations, "must contain at least one uppercase letter")
	}
	if p.RequireLowercase && !strings.ContainsFunc(password, isLower) {
		violations = append(violations, "must contain at least one lowercase letter")
	}
	if p.RequireDigit && !strings.ContainsFunc(password, isDigit) {
		violations = append(violations, "must contain at least one digit")
	}
	if p.RequireSpecial && !strings.ContainsAny(password, specialChars) {
		violations = append(violations, "must contain at least one special character")
	}

	score := 100 - 20*len(violations)
	if score < 0 {
		score = 0
	}

	return PolicyResult{
		Valid:      len(violations) == 0,
		Violations: violations,
		Score:      score,
	}
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }
