package chunker

import (
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// Config is the chunker configuration. Sizes are in bytes of UTF-8 text.
type Config struct {
	MaxChunkSize int
	Overlap      int
	SplitOn      domain.SplitMode
}

// Chunker splits normalised Markdown into overlapping spans, cutting at the
// strongest boundary that fits: paragraph, then sentence, then line, then
// word, then a hard cut.
//
// A line holding only "---" or a form feed is a hard section break. Spans
// never cross a break and carry no overlap over it.
type Chunker struct {
	max     int
	overlap int
	levels  []boundaryFunc
}

// NewChunker validates cfg and returns a Chunker.
func NewChunker(cfg Config) (*Chunker, error) {
	settings := domain.ChunkingSettings{
		MaxChunkSize: cfg.MaxChunkSize,
		Overlap:      cfg.Overlap,
		SplitOn:      cfg.SplitOn,
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	c := &Chunker{max: cfg.MaxChunkSize, overlap: cfg.Overlap}
	switch cfg.SplitOn {
	case domain.SplitParagraph, "":
		c.levels = []boundaryFunc{paragraphEnd, sentenceEnd, lineEnd, wordEnd}
	case domain.SplitSentence:
		c.levels = []boundaryFunc{sentenceEnd, lineEnd, wordEnd}
	case domain.SplitHard:
		c.levels = nil
	}
	return c, nil
}

// Spans returns a lazy sequence of spans over text. The sequence is finite
// and may be ranged over any number of times.
func (c *Chunker) Spans(text string) (iter.Seq[domain.Span], error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text to chunk", domain.ErrEmptyInput)
	}

	return func(yield func(domain.Span) bool) {
		seq := 0
		for _, seg := range sections(text) {
			if !c.chunkSection(text, seg, &seq, yield) {
				return
			}
		}
	}, nil
}

// Split collects Spans into a slice.
func (c *Chunker) Split(text string) ([]domain.Span, error) {
	spans, err := c.Spans(text)
	if err != nil {
		return nil, err
	}
	var out []domain.Span
	for s := range spans {
		out = append(out, s)
	}
	return out, nil
}

// chunkSection emits spans for text[seg.start:seg.end].
// Returns false when the consumer stopped early.
func (c *Chunker) chunkSection(text string, seg section, seq *int, yield func(domain.Span) bool) bool {
	start := seg.start
	prevEnd := seg.start

	for start < seg.end {
		end := seg.end
		if start+c.max < seg.end {
			end = c.cut(text, start, prevEnd)
		}

		if !yield(domain.Span{Sequence: *seq, Start: start, End: end, Text: text[start:end]}) {
			return false
		}
		*seq++

		if end >= seg.end {
			return true
		}

		// Overlap never exceeds half a chunk and always leaves progress.
		ov := min(c.overlap, c.max/2, end-start-1)
		next := end - ov
		for next < end && !utf8.RuneStart(text[next]) {
			next++
		}
		prevEnd = end
		start = next
	}
	return true
}

// cut picks the end of a chunk beginning at start. The cut lies past prevEnd
// so every chunk adds unseen text, and no further than start+max.
func (c *Chunker) cut(text string, start, prevEnd int) int {
	hi := start + c.max
	lo := max(prevEnd+1, start+c.max/4, start+1)

	for _, isBoundary := range c.levels {
		for p := hi; p >= lo; p-- {
			if isBoundary(text, p) {
				return p
			}
		}
	}

	p := hi
	for p > start+1 && !utf8.RuneStart(text[p]) {
		p--
	}
	if !utf8.RuneStart(text[p]) {
		return hi
	}
	return p
}

// boundaryFunc reports whether a chunk may end at byte offset p,
// i.e. text[:p] ends with the boundary.
type boundaryFunc func(text string, p int) bool

func paragraphEnd(text string, p int) bool {
	return p >= 2 && text[p-1] == '\n' && text[p-2] == '\n'
}

func sentenceEnd(text string, p int) bool {
	if p < 2 {
		return false
	}
	if ws := text[p-1]; ws != ' ' && ws != '\n' && ws != '\t' {
		return false
	}
	switch text[p-2] {
	case '.', '!', '?':
		return true
	case '"', '\'', ')':
		return p >= 3 && strings.ContainsRune(".!?", rune(text[p-3]))
	}
	return false
}

func lineEnd(text string, p int) bool {
	return p >= 1 && text[p-1] == '\n'
}

func wordEnd(text string, p int) bool {
	return p >= 1 && (text[p-1] == ' ' || text[p-1] == '\t')
}

// section is a byte range between hard section breaks.
type section struct {
	start, end int
}

// sections splits text on break lines. The break lines themselves, and
// sections holding only whitespace, are dropped.
func sections(text string) []section {
	var out []section
	segStart := 0
	lineStart := 0

	flush := func(end int) {
		if strings.TrimSpace(text[segStart:end]) != "" {
			out = append(out, section{start: segStart, end: end})
		}
	}

	for lineStart < len(text) {
		lineEndAt := strings.IndexByte(text[lineStart:], '\n')
		next := len(text)
		if lineEndAt >= 0 {
			next = lineStart + lineEndAt + 1
		}
		if isBreakLine(text[lineStart:next]) {
			flush(lineStart)
			segStart = next
		}
		lineStart = next
	}
	flush(len(text))
	return out
}

func isBreakLine(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	trimmed := strings.Trim(line, " \t")
	return trimmed == "---" || trimmed == "\f"
}
