package search

import "strings"

// Snippet collapses whitespace in content and truncates it to maxLen runes.
func Snippet(content string, maxLen int) string {
	content = strings.Join(strings.Fields(content), " ")
	if maxLen <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen]) + "..."
}
