package util

import "strings"

// EscapeNewlines replaces every literal newline in s with the two-character
// sequence backslash-n, so the text occupies a single table cell.
func EscapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}

// UnescapeNewlines reverses EscapeNewlines.
func UnescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
