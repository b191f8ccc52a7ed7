package util

import "strings"

// ExtractJSONObject returns the substring of s spanning the first '{'
// through the last '}', which is where chat models put their object when
// they wrap it in prose or code fences. The span is greedy and crosses
// newlines. ok is false when s contains no such span; the caller decides
// whether the span actually decodes.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return "", false
	}
	return s[start : end+1], true
}
