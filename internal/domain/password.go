package domain

import (
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the shortest accepted password, in characters.
const MinPasswordLength = 8

// ValidatePassword checks password against the password policy and returns a
// *PasswordPolicyError naming every violated rule.
func ValidatePassword(password string) error {
	var (
		hasUpper, hasLower, hasOther, hasSpace bool
	)
	for _, r := range password {
		switch {
		case unicode.IsSpace(r):
			hasSpace = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case !unicode.IsLetter(r):
			hasOther = true
		}
	}

	var violations []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		violations = append(violations, "must be at least 8 characters long")
	}
	if hasSpace {
		violations = append(violations, "must not contain whitespace")
	}
	if !hasUpper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if !hasOther {
		violations = append(violations, "must contain a digit or symbol")
	}
	if len(violations) > 0 {
		return &PasswordPolicyError{Violations: violations}
	}
	return nil
}
