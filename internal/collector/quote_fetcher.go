package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"QuoteSentinel/internal/metrics"
	"QuoteSentinel/internal/model"
)

// LastKnownSource supplies previously cached quotes regardless of age.
// *cache.QuoteCache satisfies it.
type LastKnownSource interface {
	LastKnown(symbols []string) map[string]model.Quote
}

// QuoteFetcher wraps a Provider so that callers always get the best data
// available: live quotes, then stale cached quotes, then reference prices.
type QuoteFetcher struct {
	Provider Provider
	Stale    LastKnownSource
	Metrics  *metrics.Metrics
	now      func() time.Time
}

// NewQuoteFetcher creates a fetcher. stale may be nil.
func NewQuoteFetcher(provider Provider, stale LastKnownSource, m *metrics.Metrics) *QuoteFetcher {
	return &QuoteFetcher{Provider: provider, Stale: stale, Metrics: m, now: time.Now}
}

var errNoQuotes = errors.New("no quotes returned")

// Fetch calls the provider once. It never returns an error: on failure the
// result has Success=false and carries fallback data. Symbols without any
// data are omitted.
func (f *QuoteFetcher) Fetch(ctx context.Context, symbols []string) model.FetchResult {
	symbols = model.NormalizeSymbols(symbols)
	start := f.now()
	res := model.FetchResult{
		Quotes:    make(map[string]model.Quote, len(symbols)),
		Source:    f.Provider.Name(),
		FetchedAt: start,
	}
	if len(symbols) == 0 {
		res.Success = true
		return res
	}

	live, err := f.Provider.FetchQuotes(ctx, symbols)
	for _, s := range symbols {
		if q, ok := live[s]; ok && q.Valid() {
			res.Quotes[s] = q
		}
	}
	if err == nil && len(res.Quotes) < len(symbols) {
		err = fmt.Errorf("%w for %d of %d symbols", errNoQuotes, len(symbols)-len(res.Quotes), len(symbols))
	}

	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
		res.Success = true
	case len(res.Quotes) > 0:
		outcome = metrics.OutcomePartial
	default:
		outcome = metrics.OutcomeFailure
	}
	f.Metrics.ObserveFetch(f.Provider.Name(), outcome, time.Since(start).Seconds())
	if res.Success {
		return res
	}

	res.Err = err
	res.Source = f.fillMissing(symbols, res.Quotes, start)
	log.Warn().Err(err).Str("provider", f.Provider.Name()).Strs("symbols", symbols).
		Str("source", res.Source).Int("quotes", len(res.Quotes)).Msg("fetch failed, serving fallback data")
	return res
}

// fillMissing completes quotes from stale cache and then the reference
// table. It returns the dominant fallback source.
func (f *QuoteFetcher) fillMissing(symbols []string, quotes map[string]model.Quote, now time.Time) string {
	var missing []string
	for _, s := range symbols {
		if _, ok := quotes[s]; !ok {
			missing = append(missing, s)
		}
	}

	var stale map[string]model.Quote
	if f.Stale != nil && len(missing) > 0 {
		stale = f.Stale.LastKnown(missing)
	}

	fromCache, fromTable := 0, 0
	for _, s := range missing {
		if q, ok := stale[s]; ok {
			quotes[s] = q.WithSource(model.SourceCache)
			fromCache++
			continue
		}
		if q, ok := FallbackQuote(s, now); ok {
			quotes[s] = q
			fromTable++
		}
	}
	f.Metrics.AddFallback(model.SourceCache, fromCache)
	f.Metrics.AddFallback(model.SourceFallback, fromTable)

	if fromCache > 0 && fromTable == 0 {
		return model.SourceCache
	}
	return model.SourceFallback
}

// FetchHistory returns the ascending price series for symbol, or an empty
// series when the provider fails.
func (f *QuoteFetcher) FetchHistory(ctx context.Context, symbol string, days int) model.PriceSeries {
	symbol = model.NormalizeSymbol(symbol)
	series, err := f.Provider.FetchHistory(ctx, symbol, days)
	if err != nil {
		log.Warn().Err(err).Str("provider", f.Provider.Name()).Str("symbol", symbol).Msg("history fetch failed")
		return model.PriceSeries{Symbol: symbol}
	}
	series.Symbol = symbol
	return series
}
