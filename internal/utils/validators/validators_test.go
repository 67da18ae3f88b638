package validators

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMessageLength(t *testing.T) {
	assert.NoError(t, ValidateMessageLength("hello", 4000))
	assert.NoError(t, ValidateMessageLength(strings.Repeat("x", 4000), 4000))

	err := ValidateMessageLength(strings.Repeat("x", 4001), 4000)
	assert.ErrorContains(t, err, "too long")

	// the size check runs before the emptiness check
	err = ValidateMessageLength(strings.Repeat(" ", 4001), 4000)
	assert.ErrorContains(t, err, "too long")

	err = ValidateMessageLength("", 4000)
	assert.ErrorContains(t, err, "empty")

	err = ValidateMessageLength("   \t\n ", 4000)
	assert.ErrorContains(t, err, "empty")
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeInput("hello\x00 world"))
	assert.Equal(t, "a b c", SanitizeInput("  a \t b \n c  "))
	assert.Equal(t, "", SanitizeInput("\x00\x00"))
}
