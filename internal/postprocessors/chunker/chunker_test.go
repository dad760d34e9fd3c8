package chunker

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// assertWellFormed checks the invariants every split must satisfy.
func assertWellFormed(t *testing.T, text string, spans []domain.Span, cfg Config) {
	t.Helper()
	require.NotEmpty(t, spans)

	for i, s := range spans {
		assert.Equal(t, i, s.Sequence, "sequence must be dense and increasing")
		assert.Less(t, s.Start, s.End, "span %d is empty", i)
		assert.LessOrEqual(t, s.End-s.Start, cfg.MaxChunkSize, "span %d too large", i)
		assert.Equal(t, text[s.Start:s.End], s.Text)
		if i > 0 {
			assert.Greater(t, s.Start, spans[i-1].Start, "starts must strictly increase")
			assert.Greater(t, s.End, spans[i-1].End, "ends must strictly increase")
		}
	}
}

// assertCoversAll checks a text without section breaks is fully covered.
func assertCoversAll(t *testing.T, text string, spans []domain.Span) {
	t.Helper()
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len(text), spans[len(spans)-1].End)
	for i := 1; i < len(spans); i++ {
		assert.LessOrEqual(t, spans[i].Start, spans[i-1].End, "gap between span %d and %d", i-1, i)
	}
}

func randomText(r *rand.Rand, size int) string {
	words := []string{"revenue", "net", "income", "segment", "fiscal", "risk", "Apple", "iPhone",
		"services", "liquidity", "capital", "margin", "operating", "tax", "débiteur", "€", "growth"}
	var b strings.Builder
	for b.Len() < size {
		b.WriteString(words[r.Intn(len(words))])
		switch r.Intn(12) {
		case 0:
			b.WriteString(". ")
		case 1:
			b.WriteString(".\n\n")
		case 2:
			b.WriteString("\n")
		case 3:
			b.WriteString("? ")
		default:
			b.WriteString(" ")
		}
	}
	return b.String()
}

func TestNewChunker_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero size", Config{MaxChunkSize: 0}},
		{"negative size", Config{MaxChunkSize: -1}},
		{"overlap equals size", Config{MaxChunkSize: 100, Overlap: 100}},
		{"overlap exceeds size", Config{MaxChunkSize: 100, Overlap: 101}},
		{"negative overlap", Config{MaxChunkSize: 100, Overlap: -1}},
		{"unknown split mode", Config{MaxChunkSize: 100, SplitOn: "token"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
		})
	}
}

func TestChunker_EmptyInput(t *testing.T) {
	c, err := NewChunker(Config{MaxChunkSize: 100, Overlap: 10})
	require.NoError(t, err)

	for _, text := range []string{"", "   ", "\n\n\t"} {
		_, err := c.Spans(text)
		assert.True(t, errors.Is(err, domain.ErrEmptyInput), "%q", text)
	}
}

func TestChunker_ShortText(t *testing.T) {
	c, err := NewChunker(Config{MaxChunkSize: 100, Overlap: 10})
	require.NoError(t, err)

	spans, err := c.Split("Apple Inc. designs smartphones.")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, "Apple Inc. designs smartphones.", spans[0].Text)
}

func TestChunker_ThreeParagraphs(t *testing.T) {
	para := strings.Repeat("x", 400)
	text := para + "\n\n" + para + "\n\n" + para

	c, err := NewChunker(Config{MaxChunkSize: 500, Overlap: 50, SplitOn: domain.SplitParagraph})
	require.NoError(t, err)

	spans, err := c.Split(text)
	require.NoError(t, err)
	require.Len(t, spans, 3)

	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, 402, spans[0].End, "first cut lands after the paragraph break")
	assert.Equal(t, 352, spans[1].Start, "next chunk starts overlap bytes before the cut")
	assert.Equal(t, 804, spans[1].End)
	assert.Equal(t, 754, spans[2].Start)
	assert.Equal(t, len(text), spans[2].End)

	assertWellFormed(t, text, spans, Config{MaxChunkSize: 500})
	assertCoversAll(t, text, spans)
}

func TestChunker_PrefersSentenceOverWord(t *testing.T) {
	text := "The company sells phones. It also sells services and wearables worldwide today"
	c, err := NewChunker(Config{MaxChunkSize: 40, Overlap: 0, SplitOn: domain.SplitSentence})
	require.NoError(t, err)

	spans, err := c.Split(text)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(spans), 2)
	assert.Equal(t, "The company sells phones. ", spans[0].Text)
	assertCoversAll(t, text, spans)
}

func TestChunker_HardMode(t *testing.T) {
	text := strings.Repeat("abcdefghij", 10)
	c, err := NewChunker(Config{MaxChunkSize: 30, Overlap: 5, SplitOn: domain.SplitHard})
	require.NoError(t, err)

	spans, err := c.Split(text)
	require.NoError(t, err)
	assert.Equal(t, 30, spans[0].End)
	assert.Equal(t, 25, spans[1].Start)
	assertWellFormed(t, text, spans, Config{MaxChunkSize: 30})
	assertCoversAll(t, text, spans)
}

func TestChunker_OverlapBoundedToHalf(t *testing.T) {
	text := strings.Repeat("y", 1000)
	c, err := NewChunker(Config{MaxChunkSize: 100, Overlap: 90, SplitOn: domain.SplitHard})
	require.NoError(t, err)

	spans, err := c.Split(text)
	require.NoError(t, err)
	for i := 1; i < len(spans); i++ {
		shared := spans[i-1].End - spans[i].Start
		assert.LessOrEqual(t, shared, 50, "overlap between %d and %d", i-1, i)
	}
	assertCoversAll(t, text, spans)
}

func TestChunker_SectionBreaks(t *testing.T) {
	text := "Item 1. Business\nApple designs devices.\n---\nItem 1A. Risk Factors\nCompetition is intense.\n\f\nItem 7. MD&A\nRevenue grew."

	c, err := NewChunker(Config{MaxChunkSize: 500, Overlap: 20})
	require.NoError(t, err)

	spans, err := c.Split(text)
	require.NoError(t, err)
	require.Len(t, spans, 3)

	assert.Equal(t, "Item 1. Business\nApple designs devices.\n", spans[0].Text)
	assert.Equal(t, "Item 1A. Risk Factors\nCompetition is intense.\n", spans[1].Text)
	assert.Equal(t, "Item 7. MD&A\nRevenue grew.", spans[2].Text)
	for _, s := range spans {
		assert.NotContains(t, s.Text, "---")
		assert.NotContains(t, s.Text, "\f")
	}
}

func TestChunker_NoOverlapAcrossBreak(t *testing.T) {
	first := strings.Repeat("a", 150)
	second := strings.Repeat("b", 150)
	text := first + "\n---\n" + second

	c, err := NewChunker(Config{MaxChunkSize: 100, Overlap: 30, SplitOn: domain.SplitHard})
	require.NoError(t, err)

	spans, err := c.Split(text)
	require.NoError(t, err)
	for _, s := range spans {
		hasA := strings.Contains(s.Text, "a")
		hasB := strings.Contains(s.Text, "b")
		assert.False(t, hasA && hasB, "span %d crosses the break", s.Sequence)
	}
	assertWellFormed(t, text, spans, Config{MaxChunkSize: 100})
}

func TestChunker_BlankSectionsDropped(t *testing.T) {
	c, err := NewChunker(Config{MaxChunkSize: 100})
	require.NoError(t, err)

	spans, err := c.Split("---\n\n---\nonly body\n---\n")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "only body\n", spans[0].Text)
}

func TestChunker_UTF8Safe(t *testing.T) {
	text := strings.Repeat("€", 200)
	c, err := NewChunker(Config{MaxChunkSize: 31, Overlap: 7, SplitOn: domain.SplitHard})
	require.NoError(t, err)

	spans, err := c.Split(text)
	require.NoError(t, err)
	for _, s := range spans {
		assert.True(t, utf8.ValidString(s.Text), "span %d splits a rune", s.Sequence)
	}
	assertWellFormed(t, text, spans, Config{MaxChunkSize: 31})
	assertCoversAll(t, text, spans)
}

func TestChunker_Restartable(t *testing.T) {
	text := randomText(rand.New(rand.NewSource(7)), 3000)
	c, err := NewChunker(Config{MaxChunkSize: 250, Overlap: 40})
	require.NoError(t, err)

	seq, err := c.Spans(text)
	require.NoError(t, err)

	var first, second []domain.Span
	for s := range seq {
		first = append(first, s)
	}
	for s := range seq {
		second = append(second, s)
	}
	assert.Equal(t, first, second)
}

func TestChunker_Lazy(t *testing.T) {
	text := strings.Repeat("word ", 10000)
	c, err := NewChunker(Config{MaxChunkSize: 64, Overlap: 8})
	require.NoError(t, err)

	seq, err := c.Spans(text)
	require.NoError(t, err)

	taken := 0
	for range seq {
		taken++
		if taken == 2 {
			break
		}
	}
	assert.Equal(t, 2, taken)
}

func TestChunker_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	modes := []domain.SplitMode{domain.SplitParagraph, domain.SplitSentence, domain.SplitHard}

	for i := 0; i < 60; i++ {
		size := 8 + r.Intn(400)
		cfg := Config{
			MaxChunkSize: size,
			Overlap:      r.Intn(size),
			SplitOn:      modes[r.Intn(len(modes))],
		}
		text := randomText(r, 50+r.Intn(4000))

		c, err := NewChunker(cfg)
		require.NoError(t, err)

		spans, err := c.Split(text)
		require.NoError(t, err)

		for _, s := range spans {
			require.True(t, utf8.ValidString(s.Text), "cfg %+v span %d", cfg, s.Sequence)
		}
		assertWellFormed(t, text, spans, cfg)
		assertCoversAll(t, text, spans)
	}
}
