package collector

import (
	"context"

	"QuoteSentinel/internal/model"
)

// DefaultHistoryDays is the look-back used when callers pass days <= 0.
const DefaultHistoryDays = 90

// Collector serves fresh price history for indicator computation.
type Collector struct {
	Fetcher *QuoteFetcher
}

// NewCollector creates a new Collector.
func NewCollector(fetcher *QuoteFetcher) *Collector {
	return &Collector{Fetcher: fetcher}
}

// History fetches a fresh price series for symbol.
func (c *Collector) History(ctx context.Context, symbol string, days int) model.PriceSeries {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	return c.Fetcher.FetchHistory(ctx, symbol, days)
}
