package driven

import (
	"context"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// Extractor turns an upload into normalised Markdown.
// Section boundaries must survive as Markdown headings or as a line
// holding only "---" or a form feed.
type Extractor interface {
	// SupportedMIMETypes returns the MIME types this extractor handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	Priority() int

	// Extract returns the Markdown text. Empty output is an error.
	Extract(ctx context.Context, raw *domain.RawFile) (string, error)
}

// ExtractorRegistry selects extractors by MIME type.
type ExtractorRegistry interface {
	// Register adds an extractor.
	Register(e Extractor)

	// DetectMIMEType resolves the MIME type of an upload.
	DetectMIMEType(raw *domain.RawFile) string

	// Extract runs the highest-priority extractor for the upload.
	// Returns domain.ErrUnsupportedType when none matches.
	Extract(ctx context.Context, raw *domain.RawFile) (string, error)

	// SupportedMIMETypes returns every MIME type with a registered extractor.
	SupportedMIMETypes() []string
}
