package util

import (
	"regexp"
	"strings"
)

var (
	jsonCodeBlockRegex = regexp.MustCompile("```(?:json|JSON)?\\s*([\\s\\S]*?)```")
)

// StripCodeFence returns the body of the first fenced code block, or the trimmed
// input when there is none. An unterminated opening fence is also removed, since
// truncated responses often lose the closing marker.
func StripCodeFence(s string) string {
	if matches := jsonCodeBlockRegex.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimPrefix(s, "JSON")
	}
	return strings.TrimSpace(s)
}

// ExtractJSON pulls the structured payload out of a model response.
// Fences are stripped; a payload that already starts with '{' or '[' is
// returned unchanged, otherwise the first balanced brace-delimited object is
// used. Nothing is repaired: a truncated payload stays truncated so the caller
// can classify it.
func ExtractJSON(s string) string {
	s = StripCodeFence(s)
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}

	objectStart := strings.Index(s, "{")
	if objectStart == -1 {
		return s
	}
	if objectEnd := findMatchingBracket(s, objectStart, '{', '}'); objectEnd != -1 {
		return s[objectStart : objectEnd+1]
	}
	// Unbalanced: hand back the tail so the parse error reflects the cut
	return s[objectStart:]
}

// findMatchingBracket finds the matching closing bracket for an opening bracket,
// skipping brackets inside strings and escaped quotes. Returns -1 if none.
func findMatchingBracket(s string, startPos int, openChar, closeChar byte) int {
	count := 0
	inString := false
	escaped := false

	for i := startPos; i < len(s); i++ {
		ch := s[i]

		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if ch == openChar {
				count++
			} else if ch == closeChar {
				count--
				if count == 0 {
					return i
				}
			}
		}
	}

	return -1
}

// SanitizeJSON escapes raw newlines that models sometimes emit inside string values
func SanitizeJSON(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if escaped {
			result.WriteByte(ch)
			escaped = false
			continue
		}

		if ch == '\\' {
			result.WriteByte(ch)
			escaped = true
			continue
		}

		if ch == '"' {
			result.WriteByte(ch)
			inString = !inString
			continue
		}

		if inString && (ch == '\n' || ch == '\r') {
			result.WriteString("\\n")
			if ch == '\r' && i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			continue
		}

		result.WriteByte(ch)
	}

	return result.String()
}
