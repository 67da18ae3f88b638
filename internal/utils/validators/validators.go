package validators

import (
	"strings"

	appErrors "daochat_go_backend/internal/errors"
)

// ValidateMessageLength rejects oversized or blank messages. Both checks are
// local and run before any storage or network call.
func ValidateMessageLength(text string, maxLength int) error {
	if len(text) > maxLength {
		return appErrors.New400Error("Message too long")
	}
	if len(strings.TrimSpace(text)) == 0 {
		return appErrors.New400Error("Message cannot be empty")
	}
	return nil
}

// SanitizeInput strips null bytes and collapses whitespace runs.
func SanitizeInput(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.Join(strings.Fields(text), " ")
}
