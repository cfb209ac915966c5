// Package store persists alerts and quote history.
package store

import (
	"context"
	"time"

	"QuoteSentinel/internal/model"
)

// QuoteRecorder persists accepted quotes for later analysis.
type QuoteRecorder interface {
	RecordQuotes(ctx context.Context, quotes []model.Quote) error
	QuoteHistory(ctx context.Context, symbol string, since time.Time) (model.PriceSeries, error)
	Close() error
}
