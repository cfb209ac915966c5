package collector

import (
	"context"

	"QuoteSentinel/internal/model"
)

// Provider is an upstream quote source.
//
//go:generate mockgen -package=collector_test -destination=mock_provider_test.go -source=fetcher.go Provider
type Provider interface {
	Name() string
	// FetchQuotes returns quotes keyed by normalized symbol. A provider may
	// return a partial map together with a non-nil error.
	FetchQuotes(ctx context.Context, symbols []string) (map[string]model.Quote, error)
	// FetchHistory returns the price history for the last days, ascending.
	FetchHistory(ctx context.Context, symbol string, days int) (model.PriceSeries, error)
}
