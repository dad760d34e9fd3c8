package html

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
	"github.com/custodia-labs/tenk/internal/extractors/textutil"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles HTML documents.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract converts the HTML body to Markdown. Headings keep their level,
// table rows become pipe-separated lines and <hr> becomes a section break.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawFile) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Data))
	if err != nil {
		return "", &domain.ExtractionError{Reason: "parse html", Err: err}
	}
	doc.Find("script, style, noscript, head, svg, template").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var w writer
	w.walk(root)

	text := textutil.Tidy(w.buf.String())
	if !textutil.HasHeadings(text) {
		text = textutil.PromoteItems(text)
	}
	if text == "" {
		return "", &domain.ExtractionError{Reason: "html has no text"}
	}
	return text, nil
}

type writer struct {
	buf strings.Builder
}

func (w *writer) block() { w.buf.WriteString("\n\n") }
func (w *writer) line()  { w.buf.WriteString("\n") }

// ensureLine starts a new line unless the buffer is already at one.
func (w *writer) ensureLine() {
	n := w.buf.Len()
	if n > 0 && w.buf.String()[n-1] != '\n' {
		w.line()
	}
}

func (w *writer) atSpace() bool {
	n := w.buf.Len()
	return n == 0 || isSpace(w.buf.String()[n-1])
}

// text writes s with whitespace runs collapsed. Whitespace at either edge
// becomes one space so adjacent inline elements stay separated.
func (w *writer) text(s string) {
	words := strings.Fields(s)
	if len(words) == 0 {
		if s != "" && !w.atSpace() {
			w.buf.WriteByte(' ')
		}
		return
	}
	if isSpace(s[0]) && !w.atSpace() {
		w.buf.WriteByte(' ')
	}
	w.buf.WriteString(strings.Join(words, " "))
	if isSpace(s[len(s)-1]) {
		w.buf.WriteByte(' ')
	}
}

func (w *writer) walk(s *goquery.Selection) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch name := goquery.NodeName(c); name {
		case "#text":
			w.text(c.Text())
		case "h1", "h2", "h3", "h4", "h5", "h6":
			title := strings.Join(strings.Fields(c.Text()), " ")
			if title == "" {
				return
			}
			w.block()
			w.buf.WriteString(strings.Repeat("#", int(name[1]-'0')) + " " + title)
			w.block()
		case "br":
			w.line()
		case "hr":
			w.block()
			w.buf.WriteString("---")
			w.block()
		case "li":
			w.ensureLine()
			w.buf.WriteString("- ")
			w.walk(c)
			w.line()
		case "tr":
			w.row(c)
		case "p", "div", "section", "article", "table", "blockquote", "pre", "ul", "ol", "center":
			w.block()
			w.walk(c)
			w.block()
		default:
			w.walk(c)
		}
	})
}

func (w *writer) row(tr *goquery.Selection) {
	var cells []string
	tr.Find("td, th").Each(func(_ int, td *goquery.Selection) {
		if cell := strings.Join(strings.Fields(td.Text()), " "); cell != "" {
			cells = append(cells, cell)
		}
	})
	if len(cells) == 0 {
		return
	}
	w.ensureLine()
	w.buf.WriteString(strings.Join(cells, " | "))
	w.line()
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
