// Package identity checks whether a token looks like a platform account id.
package identity

import (
	"strconv"
	"strings"
)

// MinDigits is the shortest digit count accepted as an account id.
const MinDigits = 17

// Validator reports whether a token is an acceptable identity.
type Validator func(token string) bool

// Validate applies the default MinDigits rule.
func Validate(token string) bool {
	return valid(token, MinDigits)
}

// New returns a Validator requiring at least minDigits digits. Values below 1
// fall back to MinDigits.
func New(minDigits int) Validator {
	if minDigits < 1 {
		minDigits = MinDigits
	}
	return func(token string) bool {
		return valid(token, minDigits)
	}
}

func valid(token string, minDigits int) bool {
	n, err := strconv.ParseUint(strings.TrimSpace(token), 10, 64)
	if err != nil {
		return false
	}
	return digits(n) >= minDigits
}

func digits(n uint64) int {
	count := 1
	for n >= 10 {
		n /= 10
		count++
	}
	return count
}
