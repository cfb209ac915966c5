package store

import (
	"context"
	"time"

	"QuoteSentinel/internal/model"
)

// NoopStore is used when no persistence is configured. Alerts then live
// only in memory.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) Create(_ context.Context, _ model.Alert) error { return nil }

func (n *NoopStore) List(_ context.Context) ([]model.Alert, error) { return nil, nil }

func (n *NoopStore) Delete(_ context.Context, _ string) error { return nil }

func (n *NoopStore) SetEnabled(_ context.Context, _ string, _ bool) error { return nil }

func (n *NoopStore) MarkTriggered(_ context.Context, _ string, _ time.Time) error { return nil }

func (n *NoopStore) RecordQuotes(_ context.Context, _ []model.Quote) error { return nil }

func (n *NoopStore) QuoteHistory(_ context.Context, symbol string, _ time.Time) (model.PriceSeries, error) {
	return model.PriceSeries{Symbol: symbol}, nil
}

func (n *NoopStore) Close() error { return nil }
