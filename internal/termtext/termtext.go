// Package termtext cleans captured terminal output for display and storage.
package termtext

import (
	"regexp"
	"strings"
)

var (
	// ansiRegex matches CSI sequences (colours, cursor movement) and OSC sequences (titles, links).
	ansiRegex = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)|\x1b[@-Z\\-_]`)

	// crlfRegex matches Windows line endings.
	crlfRegex = regexp.MustCompile(`\r\n`)
)

// StripANSI removes terminal escape sequences from text.
func StripANSI(text string) string {
	if !strings.ContainsRune(text, '\x1b') {
		return text
	}
	return ansiRegex.ReplaceAllString(text, "")
}

// NormalizeNewlines converts CRLF line endings to LF.
func NormalizeNewlines(text string) string {
	return crlfRegex.ReplaceAllString(text, "\n")
}

// Clean performs full cleaning of command output.
func Clean(text string) string {
	text = StripANSI(text)
	text = NormalizeNewlines(text)
	return strings.TrimSpace(text)
}
