package util

import (
	"regexp"
	"strings"
)

// Reasoning models may prepend their chain of thought in tags before the answer
var (
	thinkTagRegex = regexp.MustCompile(`(?i)<think(?:ing)?>([\s\S]*?)</think(?:ing)?>`)
	// An opened but never closed block means the answer was cut off mid-thought
	openThinkTagRegex = regexp.MustCompile(`(?i)<think(?:ing)?>[\s\S]*$`)
)

// ContainsThinkTags checks if the response contains a complete reasoning block
func ContainsThinkTags(response string) bool {
	return thinkTagRegex.MatchString(response)
}

// StripThinkTags removes reasoning blocks, including a dangling unterminated one
func StripThinkTags(response string) string {
	result := thinkTagRegex.ReplaceAllString(response, "")
	result = openThinkTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}
