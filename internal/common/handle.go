package common

import (
	"crypto/rand"
	"fmt"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewHandle generates a random alphanumeric handle of HandleLength
// characters using crypto/rand. Bytes at or above the largest multiple
// of the alphabet size are rejected so every character is equally likely.
func NewHandle() (string, error) {
	const limit = 256 - 256%len(alphanumeric)

	out := make([]byte, 0, HandleLength)
	buf := make([]byte, 2*HandleLength)
	for len(out) < HandleLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("handle: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphanumeric[int(b)%len(alphanumeric)])
			if len(out) == HandleLength {
				break
			}
		}
	}
	return string(out), nil
}

// ValidHandle reports whether s is a well-formed handle: exactly
// HandleLength ASCII alphanumeric characters.
func ValidHandle(s string) bool {
	if len(s) != HandleLength {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
