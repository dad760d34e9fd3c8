// Package sections labels chunks with the filing section they belong to.
package sections

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

// headingPattern matches a Markdown ATX heading line.
var headingPattern = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t#]*$`)

// itemPattern matches plain-text 10-K item headings such as "Item 7. MD&A".
var itemPattern = regexp.MustCompile(`(?mi)^[ \t]*(item[ \t]+\d{1,2}[A-C]?\.?[^\n]*)$`)

type heading struct {
	offset int
	title  string
}

// Processor sets Chunk.Section from the nearest heading at or before the
// chunk start, falling back to the first heading inside the chunk.
type Processor struct{}

var _ driven.PostProcessor = (*Processor)(nil)

// New creates a sections processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "sections"
}

// Process annotates chunks in place and returns them.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}
	headings := findHeadings(doc.Content)
	if len(headings) == 0 {
		return chunks, nil
	}

	for i := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks[i].Section = sectionFor(headings, chunks[i].Start, chunks[i].End)
	}
	return chunks, nil
}

func findHeadings(text string) []heading {
	var out []heading
	for _, m := range headingPattern.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, heading{offset: m[0], title: cleanTitle(text[m[2]:m[3]])})
	}
	if len(out) == 0 {
		for _, m := range itemPattern.FindAllStringSubmatchIndex(text, -1) {
			out = append(out, heading{offset: m[0], title: cleanTitle(text[m[2]:m[3]])})
		}
	}
	return out
}

func sectionFor(headings []heading, start, end int) string {
	// First heading strictly after start.
	i := sort.Search(len(headings), func(i int) bool { return headings[i].offset > start })
	if i > 0 {
		return headings[i-1].title
	}
	if i < len(headings) && headings[i].offset < end {
		return headings[i].title
	}
	return ""
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_")
	return strings.Join(strings.Fields(s), " ")
}
