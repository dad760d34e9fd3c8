package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

func extract(t *testing.T, body string) string {
	t.Helper()
	out, err := New().Extract(context.Background(), &domain.RawFile{Filename: "f.htm", Data: []byte(body)})
	require.NoError(t, err)
	return out
}

func TestSupportedMIMETypes(t *testing.T) {
	e := New()
	assert.ElementsMatch(t, []string{"text/html", "application/xhtml+xml"}, e.SupportedMIMETypes())
	assert.Equal(t, 50, e.Priority())
}

func TestExtract_NilFile(t *testing.T) {
	_, err := New().Extract(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExtract_HeadingsAndParagraphs(t *testing.T) {
	out := extract(t, `<html><head><title>10-K</title><style>p{}</style></head><body>
<h2>Item 1. Business</h2>
<p>Apple   designs <b>smartphones</b>.</p>
<script>alert(1)</script>
<h2>Item 7. MD&amp;A</h2>
<p>Revenue grew.</p>
</body></html>`)

	assert.Equal(t, "## Item 1. Business\n\nApple designs smartphones.\n\n## Item 7. MD&A\n\nRevenue grew.", out)
	assert.NotContains(t, out, "alert")
	assert.NotContains(t, out, "p{}")
}

func TestExtract_Tables(t *testing.T) {
	out := extract(t, `<body><table>
<tr><th>Segment</th><th>2023</th></tr>
<tr><td>Americas</td><td>$162,560</td></tr>
<tr><td> </td></tr>
</table></body>`)

	assert.Equal(t, "Segment | 2023\nAmericas | $162,560", out)
}

func TestExtract_PromotesItemsWithoutHeadings(t *testing.T) {
	out := extract(t, `<body><p><b>ITEM 1A. RISK FACTORS</b></p><p>Competition is intense.</p><hr/><p>Item 2. Properties</p></body>`)

	assert.Equal(t, "## ITEM 1A. RISK FACTORS\n\nCompetition is intense.\n\n---\n\n## Item 2. Properties", out)
}

func TestExtract_ListItems(t *testing.T) {
	out := extract(t, `<ul><li>iPhone</li><li>Mac</li></ul>`)
	assert.Equal(t, "- iPhone\n- Mac", out)
}

func TestExtract_NoText(t *testing.T) {
	_, err := New().Extract(context.Background(), &domain.RawFile{Data: []byte("<html><body><script>x</script></body></html>")})
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}
