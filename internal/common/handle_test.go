package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandle(t *testing.T) {
	seen := make(map[string]bool)
	var chars strings.Builder

	for i := 0; i < 500; i++ {
		h, err := NewHandle()
		require.NoError(t, err)
		assert.True(t, ValidHandle(h), "handle %q", h)
		assert.False(t, seen[h], "duplicate handle %q", h)
		seen[h] = true
		chars.WriteString(h)
	}

	// Over 8000 characters every symbol in the alphabet shows up.
	for _, c := range alphanumeric {
		assert.Contains(t, chars.String(), string(c))
	}
}

func TestValidHandle(t *testing.T) {
	tests := []struct {
		name   string
		handle string
		want   bool
	}{
		{"alphanumeric", "aZ09aZ09aZ09aZ09", true},
		{"root", RootHandle, true},
		{"too short", "abc", false},
		{"too long", "aZ09aZ09aZ09aZ09x", false},
		{"punctuation", "aZ09aZ09aZ09aZ0-", false},
		{"path traversal", "../../etc/passwd", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidHandle(tt.handle))
		})
	}
}
