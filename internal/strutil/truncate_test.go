package strutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"empty string", "", 30, ""},
		{"short title", "Hello there", 30, "Hello there"},
		{"exactly thirty", strings.Repeat("a", 30), 30, strings.Repeat("a", 30)},
		{"thirty one", strings.Repeat("a", 31), 30, strings.Repeat("a", 30) + "..."},
		{"zero maxLen", "hello", 0, ""},
		{"negative maxLen", "hello", -3, ""},
		{"unicode kept whole", "héllo wörld", 5, "héllo..."},
		{"emoji", "hi 🎉 there", 4, "hi 🎉..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.input, tt.maxLen))
		})
	}
}
