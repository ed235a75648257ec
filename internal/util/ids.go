package util

import gonanoid "github.com/matoous/go-nanoid/v2"

const nanoidLength = 21

// IsNanoid reports whether s has the shape of a default nanoid: 21
// characters from the URL-safe alphabet.
func IsNanoid(s string) bool {
	if len(s) != nanoidLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// NewID returns a new default nanoid.
func NewID() (string, error) {
	return gonanoid.New()
}
