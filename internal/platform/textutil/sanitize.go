package textutil

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var plainTextPolicy = bluemonday.StrictPolicy()

// PlainText strips markup from user supplied text and truncates it to maxRunes.
// A non-positive maxRunes disables truncation.
func PlainText(value string, maxRunes int) string {
	sanitized := strings.TrimSpace(html.UnescapeString(plainTextPolicy.Sanitize(value)))
	if maxRunes <= 0 || utf8.RuneCountInString(sanitized) <= maxRunes {
		return sanitized
	}
	runes := []rune(sanitized)
	return strings.TrimSpace(string(runes[:maxRunes]))
}
