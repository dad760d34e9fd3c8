// Package plaintext handles filings uploaded as plain text.
package plaintext

import (
	"context"
	"unicode/utf8"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
	"github.com/custodia-labs/tenk/internal/extractors/textutil"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"text/plain", "text/markdown", "text/html"}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 5 // Fallback extractor
}

// Extract tidies whitespace and promotes item headings.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawFile) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Data) {
		return "", &domain.ExtractionError{Reason: "text is not valid UTF-8"}
	}

	content := textutil.PromoteItems(textutil.Tidy(string(raw.Data)))
	if content == "" {
		return "", &domain.ExtractionError{Reason: "file has no text"}
	}
	return content, nil
}
