package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	e := New()
	assert.Contains(t, e.SupportedMIMETypes(), "text/markdown")
	assert.Equal(t, 50, e.Priority())
}

func TestExtract_NilFile(t *testing.T) {
	_, err := New().Extract(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExtract_KeepsStructure(t *testing.T) {
	in := "---\ntitle: Apple 10-K\n---\n# Apple\r\n\r\n## Item 1. Business\n\nSee [our site](https://apple.com).\n![logo](logo.png)\n\n\n\n* * *\n\n## Item 7. MD&A\nRevenue grew."

	out, err := New().Extract(context.Background(), &domain.RawFile{Data: []byte(in)})
	require.NoError(t, err)
	assert.Equal(t, "# Apple\n\n## Item 1. Business\n\nSee our site.\n\n---\n\n## Item 7. MD&A\nRevenue grew.", out)
}

func TestExtract_PromotesItems(t *testing.T) {
	out, err := New().Extract(context.Background(), &domain.RawFile{Data: []byte("Item 1. Business\nWe sell phones.")})
	require.NoError(t, err)
	assert.Equal(t, "## Item 1. Business\nWe sell phones.", out)
}

func TestExtract_InvalidUTF8(t *testing.T) {
	_, err := New().Extract(context.Background(), &domain.RawFile{Data: []byte{0xff, 0xfe, 'a'}})
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestExtract_Blank(t *testing.T) {
	_, err := New().Extract(context.Background(), &domain.RawFile{Data: []byte("\n\n  ")})
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}
