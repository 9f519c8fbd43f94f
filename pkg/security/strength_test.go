package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPasswordStrength_String(t *testing.T) {
	tests := []struct {
		strength PasswordStrength
		want     string
	}{
		{PasswordWeak, "Weak"},
		{PasswordFair, "Fair"},
		{PasswordGood, "Good"},
		{PasswordStrong, "Strong"},
		{PasswordStrength(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.strength.String())
		})
	}
}

func TestLengthStrength(t *testing.T) {
	tests := []struct {
		length int
		want   PasswordStrength
	}{
		{0, PasswordWeak},
		{7, PasswordWeak},
		{8, PasswordFair},
		{13, PasswordFair},
		{14, PasswordGood},
		{19, PasswordGood},
		{20, PasswordStrong},
		{64, PasswordStrong},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, lengthStrength(tt.length), "length=%d", tt.length)
	}
}

func TestEvaluate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		r := Evaluate("")
		assert.Equal(t, PasswordWeak, r.Strength)
		assert.Zero(t, r.Length)
		assert.NotEmpty(t, r.Advice())
	})

	t.Run("short", func(t *testing.T) {
		r := Evaluate("abc12")
		assert.Equal(t, PasswordWeak, r.Strength)
		assert.Equal(t, 5, r.Length)
	})

	t.Run("long but repetitive", func(t *testing.T) {
		r := Evaluate("aaaaaaaaaaaaaaaaaaaaaaaa")
		assert.Less(t, r.Strength, PasswordStrong)
		assert.NotEmpty(t, r.Advice())
	})

	t.Run("long random", func(t *testing.T) {
		r := Evaluate("q7#Lx9!vR2@mK5$pT8&wZ3^n")
		assert.Equal(t, PasswordStrong, r.Strength)
		assert.Greater(t, r.Entropy, float64(RecommendedEntropy))
		assert.Empty(t, r.Advice())
	})

	t.Run("counts runes", func(t *testing.T) {
		r := Evaluate("пароль")
		assert.Equal(t, 6, r.Length)
	})
}
