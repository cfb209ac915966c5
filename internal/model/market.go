package model

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Quote is a single normalized market quote. Quotes are values: a newer
// quote supersedes an older one, nothing edits one in place.
type Quote struct {
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name,omitempty"`
	Price            float64   `json:"price"`
	PreviousPrice    *float64  `json:"previous_price"`
	VariationPercent float64   `json:"variation_percent"`
	Unit             string    `json:"unit"`
	Source           string    `json:"source"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewQuote builds a Quote, deriving VariationPercent from the previous
// price when one is known. providerVariation is used only when it is not.
func NewQuote(symbol string, price float64, previous *float64, providerVariation float64, unit, source string, ts time.Time) Quote {
	q := Quote{
		Symbol:           NormalizeSymbol(symbol),
		Price:            price,
		VariationPercent: providerVariation,
		Unit:             unit,
		Source:           source,
		Timestamp:        ts,
	}
	if previous != nil {
		prev := *previous
		q.PreviousPrice = &prev
		if prev > 0 {
			q.VariationPercent = (price - prev) / prev * 100
		} else {
			q.VariationPercent = 0
		}
	}
	return q
}

// Valid reports whether the quote satisfies the price invariant.
func (q Quote) Valid() bool {
	return q.Symbol != "" && q.Price >= 0 && !math.IsNaN(q.Price) && !math.IsInf(q.Price, 0)
}

// WithSource returns a copy of q tagged with a different source.
func (q Quote) WithSource(source string) Quote {
	q.Source = source
	return q
}

// NormalizeSymbol lower-cases and trims a symbol.
func NormalizeSymbol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeSymbols normalizes, de-duplicates and sorts a symbol list,
// dropping empty entries.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		n := NormalizeSymbol(s)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// PricePoint is one observation of a historical series.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// PriceSeries is a time-ascending price history for one symbol.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// Prices extracts the price column.
func (s PriceSeries) Prices() []float64 {
	prices := make([]float64, len(s.Points))
	for i, p := range s.Points {
		prices[i] = p.Price
	}
	return prices
}

// Len returns the number of points.
func (s PriceSeries) Len() int { return len(s.Points) }

// Sources attached to quotes that did not come from a live upstream call.
const (
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

// FetchResult is the outcome of one upstream fetch. A failed fetch still
// carries the best data available, tagged by Source.
type FetchResult struct {
	Success   bool             `json:"success"`
	Quotes    map[string]Quote `json:"quotes"`
	Source    string           `json:"source"`
	FetchedAt time.Time        `json:"fetched_at"`
	Err       error            `json:"-"`
}
