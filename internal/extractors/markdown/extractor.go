// Package markdown accepts Markdown filings, such as a reviewed preview
// edited by hand, and normalises them for chunking.
package markdown

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
	"github.com/custodia-labs/tenk/internal/extractors/textutil"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

var (
	frontMatter = regexp.MustCompile(`(?s)\A---\n.*?\n---\n`)
	images      = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	// Thematic breaks other than "---" are rewritten so the chunker sees one form.
	thematicBreak = regexp.MustCompile(`(?m)^[ \t]*(\*[ \t]*\*[ \t]*\*[ \t*]*|_[ \t]*_[ \t]*_[ \t_]*)$`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Extractor handles Markdown documents.
type Extractor struct{}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract keeps headings and structure, drops images and front matter and
// reduces links to their text.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawFile) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Data) {
		return "", &domain.ExtractionError{Reason: "markdown is not valid UTF-8"}
	}

	content := textutil.NormaliseNewlines(string(raw.Data))
	content = frontMatter.ReplaceAllString(content, "")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = thematicBreak.ReplaceAllString(content, "---")
	content = multiNewlines.ReplaceAllString(content, "\n\n")
	content = strings.TrimSpace(content)

	if !textutil.HasHeadings(content) {
		content = textutil.PromoteItems(content)
	}
	if content == "" {
		return "", &domain.ExtractionError{Reason: "markdown has no text"}
	}
	return content, nil
}
