package security

import "testing"

func TestPasswordPolicyAccepts(t *testing.T) {
	p := DefaultPasswordPolicy()

	res := p.Validate("Str0ng!Pw")
	if !res.Valid {
		t.Fatalf("expected valid, violations: %v", res.Violations)
	}
	if res.Score != 100 {
		t.Errorf("score = %d, want 100", res.Score)
	}
}

func TestPasswordPolicyViolations(t *testing.T) {
	p := DefaultPasswordPolicy()

	cases := []struct {
		password   string
		violations int
	}{
		{"Short1!", 1},     // length only
		{"alllowercase1!", 1}, // missing uppercase
		{"ALLUPPERCASE1!", 1}, // missing lowercase
		{"NoDigitsHere!", 1},  // missing digit
		{"NoSpecial123", 1},   // missing special
		{"abc", 4},            // short, no upper, no digit, no special
		{"", 5},               // everything
	}

	for _, tc := range cases {
		res := p.Validate(tc.password)
		if len(res.Violations) != tc.violations {
			t.Errorf("%q: %d violations (%v), want %d", tc.password, len(res.Violations), res.Violations, tc.violations)
		}
		if res.Valid != (tc.violations == 0) {
			t.Errorf("%q: valid = %v with %d violations", tc.password, res.Valid, tc.violations)
		}
	}
}

func TestPasswordPolicyScoreFloor(t *testing.T) {
	p := DefaultPasswordPolicy()

	res := p.Validate("")
	if res.Score != 0 {
		t.Errorf("score = %d, want floor of 0", res.Score)
	}

	res = p.Validate("abc")
	if res.Score != 20 {
		t.Errorf("score = %d, want 20 for 4 violations", res.Score)
	}
}

func TestPasswordPolicyDisabledRules(t *testing.T) {
	p := PasswordPolicy{MinLength: 4}

	res := p.Validate("aaaa")
	if !res.Valid {
		t.Fatalf("all character rules disabled, expected valid, got %v", res.Violations)
	}
}
