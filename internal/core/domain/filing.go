package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MinFilingYear is the first year EDGAR carries full-text filings.
const MinFilingYear = 1993

// Quarter is a fiscal quarter. 10-K filings are usually filed for Q4.
type Quarter int

// Fiscal quarters.
const (
	Q1 Quarter = iota + 1
	Q2
	Q3
	Q4
)

// IsValid returns true if the quarter is Q1 through Q4.
func (q Quarter) IsValid() bool {
	return q >= Q1 && q <= Q4
}

// String returns the quarter as "Q1".."Q4".
func (q Quarter) String() string {
	if !q.IsValid() {
		return fmt.Sprintf("Q?(%d)", int(q))
	}
	return "Q" + strconv.Itoa(int(q))
}

// ParseQuarter accepts "Q4", "q4" or "4".
func ParseQuarter(s string) (Quarter, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "Q")
	n, err := strconv.Atoi(s)
	if err != nil || !Quarter(n).IsValid() {
		return 0, fmt.Errorf("%w: quarter %q", ErrInvalidMetadata, s)
	}
	return Quarter(n), nil
}

// FilingPeriod is the (year, quarter) pair a filing reports on.
type FilingPeriod struct {
	Year    int
	Quarter Quarter
}

// String renders the period as "2023 Q4".
func (p FilingPeriod) String() string {
	return fmt.Sprintf("%d %s", p.Year, p.Quarter)
}

// Compact renders the period as "2023Q4", used in source labels.
func (p FilingPeriod) Compact() string {
	return fmt.Sprintf("%d%s", p.Year, p.Quarter)
}

// Before orders periods chronologically.
func (p FilingPeriod) Before(o FilingPeriod) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Quarter < o.Quarter
}

var periodPattern = regexp.MustCompile(`^(\d{4})\s*[-/ ]?\s*[Qq]([1-4])$`)

// ParseFilingPeriod parses "2023 Q4", "2023-Q4" or "2023Q4".
func ParseFilingPeriod(s string) (FilingPeriod, error) {
	m := periodPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return FilingPeriod{}, fmt.Errorf("%w: filing period %q", ErrInvalidInput, s)
	}
	year, _ := strconv.Atoi(m[1])
	q, _ := strconv.Atoi(m[2])
	return FilingPeriod{Year: year, Quarter: Quarter(q)}, nil
}

// NormaliseTicker upper-cases and trims a ticker symbol.
func NormaliseTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// FilingKey identifies one logical filing. At most one active document
// exists per key.
type FilingKey struct {
	Ticker string
	Period FilingPeriod
}

// String renders the key as "AAPL/2023/Q4".
func (k FilingKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Ticker, k.Period.Year, k.Period.Quarter)
}

// FilingMetadata is the caller-supplied description of an upload.
type FilingMetadata struct {
	Ticker  string
	Year    int
	Quarter Quarter
}

var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// Validate checks ticker shape, year range and quarter.
// The ticker is normalised in place.
func (m *FilingMetadata) Validate() error {
	m.Ticker = NormaliseTicker(m.Ticker)
	if m.Ticker == "" {
		return fmt.Errorf("%w: ticker is required", ErrInvalidMetadata)
	}
	if !tickerPattern.MatchString(m.Ticker) {
		return fmt.Errorf("%w: ticker %q", ErrInvalidMetadata, m.Ticker)
	}
	maxYear := time.Now().Year() + 1
	if m.Year < MinFilingYear || m.Year > maxYear {
		return fmt.Errorf("%w: year %d outside %d-%d", ErrInvalidMetadata, m.Year, MinFilingYear, maxYear)
	}
	if !m.Quarter.IsValid() {
		return fmt.Errorf("%w: quarter %d", ErrInvalidMetadata, int(m.Quarter))
	}
	return nil
}

// Period returns the filing period.
func (m FilingMetadata) Period() FilingPeriod {
	return FilingPeriod{Year: m.Year, Quarter: m.Quarter}
}

// Key returns the filing key.
func (m FilingMetadata) Key() FilingKey {
	return FilingKey{Ticker: NormaliseTicker(m.Ticker), Period: m.Period()}
}
