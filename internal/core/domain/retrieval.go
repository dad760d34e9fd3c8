package domain

import (
	"fmt"
	"slices"
)

// QueryFilter scopes retrieval to a set of tickers and filing periods.
// A chunk matches when its ticker AND its period are both in the filter.
type QueryFilter struct {
	Tickers []string
	Periods []FilingPeriod
}

// NewQueryFilter builds a filter from raw ticker symbols and period strings.
func NewQueryFilter(tickers []string, periods []string) (QueryFilter, error) {
	f := QueryFilter{}
	for _, t := range tickers {
		if t = NormaliseTicker(t); t != "" && !slices.Contains(f.Tickers, t) {
			f.Tickers = append(f.Tickers, t)
		}
	}
	for _, p := range periods {
		period, err := ParseFilingPeriod(p)
		if err != nil {
			return QueryFilter{}, err
		}
		if !slices.Contains(f.Periods, period) {
			f.Periods = append(f.Periods, period)
		}
	}
	return f, nil
}

// Validate fails with ErrEmptyFilter unless both sets are non-empty.
func (f QueryFilter) Validate() error {
	if len(f.Tickers) == 0 {
		return fmt.Errorf("%w: at least one ticker is required", ErrEmptyFilter)
	}
	if len(f.Periods) == 0 {
		return fmt.Errorf("%w: at least one filing period is required", ErrEmptyFilter)
	}
	return nil
}

// Matches reports whether a filing falls inside the filter.
// An empty filter matches nothing.
func (f QueryFilter) Matches(ticker string, period FilingPeriod) bool {
	return slices.Contains(f.Tickers, ticker) && slices.Contains(f.Periods, period)
}

// ScoredChunk is a retrieved chunk with its parent filing identity.
type ScoredChunk struct {
	Chunk    Chunk
	Ticker   string
	Period   FilingPeriod
	Filename string
	Score    float64
}

// Source returns the citation label of the parent filing.
func (c ScoredChunk) Source() string {
	return SourceLabel(c.Ticker, c.Period)
}

// RetrievalResult is the ordered output of a retrieval.
// Chunks are sorted by descending score, ties by ascending sequence.
type RetrievalResult struct {
	Query  string
	Filter QueryFilter
	Chunks []ScoredChunk
}

// ContextOptions lists what can be selected in a query filter.
type ContextOptions struct {
	Tickers []string
	Periods []FilingPeriod
}
