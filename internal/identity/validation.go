package identity

import (
	"regexp"
	"strings"
	"unicode"
)

// MinPasswordLength matches the provider's own lower bound.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// NormalizeEmail trims and lower-cases an address before it is compared or stored.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidPassword reports whether s satisfies the minimum length.
func ValidPassword(s string) bool {
	return len([]rune(s)) >= MinPasswordLength
}

// ValidName accepts two or more characters made of letters and spaces.
func ValidName(s string) bool {
	s = strings.TrimSpace(s)
	if len([]rune(s)) < 2 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && r != ' ' {
			return false
		}
	}
	return true
}
