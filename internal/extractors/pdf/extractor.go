// Package pdf extracts filing text from PDF uploads.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
	"github.com/custodia-labs/tenk/internal/extractors/textutil"
	"github.com/custodia-labs/tenk/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// maxSize caps uploads read fully into memory.
const maxSize = 200 << 20

// Extractor reads the text layer of a PDF page by page.
// Pages are separated by form-feed lines; item headings become "##" headings.
type Extractor struct{}

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract converts the PDF to Markdown.
func (e *Extractor) Extract(ctx context.Context, raw *domain.RawFile) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}
	if len(raw.Data) > maxSize {
		return "", &domain.ExtractionError{Reason: fmt.Sprintf("pdf larger than %d bytes", maxSize)}
	}

	pages, err := readPages(ctx, raw.Data)
	if err != nil {
		return "", err
	}

	text := pagesToMarkdown(pages)
	if strings.TrimSpace(text) == "" {
		return "", &domain.ExtractionError{Reason: "pdf has no text layer"}
	}
	return text, nil
}

func readPages(ctx context.Context, data []byte) (pages []string, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &domain.ExtractionError{Reason: "malformed pdf", Err: fmt.Errorf("%v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &domain.ExtractionError{Reason: "open pdf", Err: err}
	}

	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("pdf page %d unreadable: %v", i, err)
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// pagesToMarkdown joins page texts with form-feed break lines and promotes
// item headings. Blank pages are dropped.
func pagesToMarkdown(pages []string) string {
	var parts []string
	for _, p := range pages {
		p = textutil.Tidy(p)
		if p == "" {
			continue
		}
		parts = append(parts, textutil.PromoteItems(p))
	}
	return strings.Join(parts, "\n\f\n")
}
