// Package language normalizes language tags coming from feeds, APIs and detection.
package language

import "strings"

// NormalizeTag lower-cases a language tag and uses "-" separators.
// Blank or non-alphabetic tags normalize to "".
func NormalizeTag(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}

	parts := strings.FieldsFunc(trimmed, func(r rune) bool { return r == '-' || r == '_' })
	for _, part := range parts {
		if !isAlphaLower(part) {
			return ""
		}
	}
	return strings.Join(parts, "-")
}

// NormalizeCode returns the primary subtag, e.g. "en" for "en-US".
func NormalizeCode(raw string) string {
	tag := NormalizeTag(raw)
	primary, _, _ := strings.Cut(tag, "-")
	return primary
}

// FirstCode returns the first candidate that normalizes to a non-empty code.
func FirstCode(candidates ...string) string {
	for _, c := range candidates {
		if code := NormalizeCode(c); code != "" {
			return code
		}
	}
	return ""
}

func isAlphaLower(value string) bool {
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return value != ""
}
