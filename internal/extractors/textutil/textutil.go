// Package textutil holds the text clean-up shared by the extractors.
package textutil

import (
	"regexp"
	"strings"
)

var (
	itemLine    = regexp.MustCompile(`(?i)^(part\s+[ivx]+|item\s+\d{1,2}[a-c]?)\b[.:]?`)
	multiSpaces = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// NormaliseNewlines converts CRLF and CR line endings to LF.
func NormaliseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// Tidy trims every line, collapses inner whitespace and keeps at most one
// blank line between blocks. Form-feed lines are preserved.
func Tidy(s string) string {
	lines := strings.Split(NormaliseNewlines(s), "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		if strings.Trim(line, " \t") == "\f" {
			out = append(out, "\f")
			blank = false
			continue
		}
		line = strings.TrimSpace(multiSpaces.ReplaceAllString(line, " "))
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// PromoteItems turns short lines that open a 10-K part or item into level-2
// Markdown headings so section boundaries survive chunking.
func PromoteItems(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || len(trimmed) > 120 {
			continue
		}
		if itemLine.MatchString(trimmed) {
			lines[i] = "## " + trimmed
		}
	}
	return strings.Join(lines, "\n")
}

// HasHeadings reports whether s contains a Markdown ATX heading.
func HasHeadings(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		t := strings.TrimLeft(line, " ")
		if strings.HasPrefix(t, "#") {
			n := len(t) - len(strings.TrimLeft(t, "#"))
			if n <= 6 && len(t) > n && (t[n] == ' ' || t[n] == '\t') {
				return true
			}
		}
	}
	return false
}
