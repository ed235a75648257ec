package util

import (
	"testing"
)

func TestIsNanoid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"Valid21Chars", "sGvgBXbBcVCjBIKCLS2Os", true},
		{"Valid21CharsAlt", "tHwhCYcCdWDkCJLDMT3Pt", true},
		{"TooShort", "abc123", false},
		{"TooLong", "sGvgBXbBcVCjBIKCLS2OsX", false},
		{"WithSpace", "sGvgBXbBcVCjBIKCL 2Os", false},
		{"WithComma", "sGvgBXbBcVCjBIKCL,2Os", false},
		{"Empty", "", false},
		{"AllDashes", "---------------------", true},
		{"MixedValid", "Aa0_-Bb1_-Cc2_-Dd3_-E", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := IsNanoid(tc.in)
			if got != tc.want {
				t.Fatalf("IsNanoid(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestNewIDIsNanoid(t *testing.T) {
	id, err := NewID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsNanoid(id) {
		t.Fatalf("NewID() = %q is not a nanoid", id)
	}
}
