// Package security rates stored passwords. Ratings are advisory; muxpass
// never refuses a password because of them.
package security

import (
	"fmt"
	"unicode/utf8"

	passwordvalidator "github.com/wagslane/go-password-validator"
)

// RecommendedEntropy is the entropy in bits below which Advice suggests a
// longer password.
const RecommendedEntropy = 60

// PasswordStrength represents the strength level of a password.
type PasswordStrength int

const (
	// PasswordWeak indicates fewer than 8 characters or very low entropy.
	PasswordWeak PasswordStrength = iota
	// PasswordFair indicates a minimally acceptable password.
	PasswordFair
	// PasswordGood indicates a good password.
	PasswordGood
	// PasswordStrong indicates a strong password.
	PasswordStrong
)

// String returns a human-readable representation of the password strength.
func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "Weak"
	case PasswordFair:
		return "Fair"
	case PasswordGood:
		return "Good"
	case PasswordStrong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// Report is the result of Evaluate.
type Report struct {
	Strength PasswordStrength
	Entropy  float64
	Length   int
}

// Advice returns a short hint for the user, or "" when nothing is worth saying.
func (r Report) Advice() string {
	switch {
	case r.Strength == PasswordWeak:
		return fmt.Sprintf("weak password (%d characters, %.0f bits); consider 'generate'", r.Length, r.Entropy)
	case r.Entropy < RecommendedEntropy:
		return fmt.Sprintf("low entropy (%.0f bits); a longer password is recommended", r.Entropy)
	default:
		return ""
	}
}

// Evaluate rates password. Length is the primary factor, following NIST
// SP 800-63B; entropy only ever lowers the rating, so that "aaaaaaaaaaaaaaaaaaaa"
// is not called strong.
func Evaluate(password string) Report {
	length := utf8.RuneCountInString(password)
	entropy := passwordvalidator.GetEntropy(password)

	strength := lengthStrength(length)
	if limit := entropyCap(entropy); limit < strength {
		strength = limit
	}

	return Report{Strength: strength, Entropy: entropy, Length: length}
}

func lengthStrength(length int) PasswordStrength {
	switch {
	case length >= 20:
		return PasswordStrong
	case length >= 14:
		return PasswordGood
	case length >= 8:
		return PasswordFair
	default:
		return PasswordWeak
	}
}

func entropyCap(bits float64) PasswordStrength {
	switch {
	case bits >= 80:
		return PasswordStrong
	case bits >= RecommendedEntropy:
		return PasswordGood
	case bits >= 35:
		return PasswordFair
	default:
		return PasswordWeak
	}
}
