package core

import (
	"strings"

	"github.com/google/uuid"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NewID returns a new random object ID.
func NewID() string {
	return uuid.New().String()
}

// ContainsString reports whether s is in list.
func ContainsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// CleanList splits every item on commas, trims the parts and drops empty and repeated ones.
// Lists posted as a single comma-separated form value and JSON arrays end up the same.
func CleanList(items []string) []string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = CleanString(part); part != "" && !ContainsString(cleaned, part) {
				cleaned = append(cleaned, part)
			}
		}
	}
	return cleaned
}
