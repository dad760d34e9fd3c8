package extractors

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
	"github.com/custodia-labs/tenk/internal/extractors/html"
	"github.com/custodia-labs/tenk/internal/extractors/markdown"
	"github.com/custodia-labs/tenk/internal/extractors/pdf"
	"github.com/custodia-labs/tenk/internal/extractors/plaintext"
	"github.com/custodia-labs/tenk/internal/logger"
)

// extensionTypes resolves common filing extensions before content sniffing.
var extensionTypes = map[string]string{
	".pdf":      "application/pdf",
	".htm":      "text/html",
	".html":     "text/html",
	".xhtml":    "application/xhtml+xml",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
}

// Registry dispatches uploads to the highest-priority extractor for their
// MIME type. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byType map[string][]driven.Extractor
}

var _ driven.ExtractorRegistry = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string][]driven.Extractor)}
}

// NewDefaultRegistry creates a registry holding every built-in extractor.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(pdf.New())
	r.Register(html.New())
	r.Register(markdown.New())
	r.Register(plaintext.New())
	return r
}

// Register adds an extractor under each of its MIME types.
func (r *Registry) Register(e driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, mt := range e.SupportedMIMETypes() {
		list := append(r.byType[mt], e)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.byType[mt] = list
	}
}

// DetectMIMEType resolves the MIME type of an upload. A declared type wins,
// then the file extension, then content sniffing.
func (r *Registry) DetectMIMEType(raw *domain.RawFile) string {
	if raw == nil {
		return ""
	}
	if mt := baseType(raw.MIMEType); mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if mt, ok := extensionTypes[strings.ToLower(filepath.Ext(raw.Filename))]; ok {
		return mt
	}
	return baseType(http.DetectContentType(raw.Data))
}

// Extract runs the best extractor for the upload.
func (r *Registry) Extract(ctx context.Context, raw *domain.RawFile) (string, error) {
	if raw == nil {
		return "", fmt.Errorf("%w: no upload", domain.ErrInvalidInput)
	}

	mt := r.DetectMIMEType(raw)

	r.mu.RLock()
	candidates := r.byType[mt]
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedType, mt)
	}

	logger.Debug("extracting %s as %s", raw.Filename, mt)
	return candidates[0].Extract(ctx, raw)
}

// SupportedMIMETypes returns every registered MIME type in sorted order.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byType))
	for mt := range r.byType {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

func baseType(mt string) string {
	if mt == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(mt)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mt))
	}
	return parsed
}
