package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewQueryFilter tests normalisation and de-duplication
func TestNewQueryFilter(t *testing.T) {
	f, err := NewQueryFilter([]string{"aapl", "AAPL", " msft", ""}, []string{"2023 Q4", "2023-Q4", "2022 Q4"})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, f.Tickers)
	assert.Equal(t, []FilingPeriod{{Year: 2023, Quarter: Q4}, {Year: 2022, Quarter: Q4}}, f.Periods)
}

// TestNewQueryFilter_BadPeriod tests period parse errors propagate
func TestNewQueryFilter_BadPeriod(t *testing.T) {
	_, err := NewQueryFilter([]string{"AAPL"}, []string{"last year"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

// TestQueryFilter_Validate tests that both sets are required
func TestQueryFilter_Validate(t *testing.T) {
	period := FilingPeriod{Year: 2023, Quarter: Q4}

	assert.NoError(t, QueryFilter{Tickers: []string{"AAPL"}, Periods: []FilingPeriod{period}}.Validate())

	err := QueryFilter{Periods: []FilingPeriod{period}}.Validate()
	assert.True(t, errors.Is(err, ErrEmptyFilter))

	err = QueryFilter{Tickers: []string{"AAPL"}}.Validate()
	assert.True(t, errors.Is(err, ErrEmptyFilter))

	err = QueryFilter{}.Validate()
	assert.True(t, errors.Is(err, ErrEmptyFilter))
}

// TestQueryFilter_Matches tests ticker AND period matching
func TestQueryFilter_Matches(t *testing.T) {
	q4 := FilingPeriod{Year: 2023, Quarter: Q4}
	q3 := FilingPeriod{Year: 2023, Quarter: Q3}
	f := QueryFilter{Tickers: []string{"AAPL"}, Periods: []FilingPeriod{q4}}

	assert.True(t, f.Matches("AAPL", q4))
	assert.False(t, f.Matches("AAPL", q3))
	assert.False(t, f.Matches("MSFT", q4))
	assert.False(t, QueryFilter{}.Matches("AAPL", q4))
}

// TestScoredChunk_Source tests the citation label
func TestScoredChunk_Source(t *testing.T) {
	c := ScoredChunk{Ticker: "MSFT", Period: FilingPeriod{Year: 2022, Quarter: Q4}}
	assert.Equal(t, "MSFT-2022Q4.md", c.Source())
}
