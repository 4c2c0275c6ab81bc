package domain

import "strings"

// priorityKeywords flag content that needs immediate attention. Matching is
// case-insensitive substring search, so "need SOS now" matches "sos".
var priorityKeywords = []string{
	"urgent",
	"sos",
	"help needed",
	"immediate",
	"emergency",
}

// IsPriority reports whether the text contains at least one priority keyword.
// Pure function: no I/O, no cache.
func IsPriority(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range priorityKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
