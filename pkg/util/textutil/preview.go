package textutil

import "strings"

// Preview trims body and cuts it to at most max runes, marking the cut with "...".
func Preview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
