// Package quotes serves quotes through the cache, refreshing from upstream
// on a miss and publishing accepted refreshes on the bus.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/singleflight"

	"QuoteSentinel/internal/bus"
	"QuoteSentinel/internal/cache"
	"QuoteSentinel/internal/calculator"
	"QuoteSentinel/internal/metrics"
	"QuoteSentinel/internal/model"
)

const defaultHistoryDays = 90

// ErrNoSymbols is returned when a request names no usable symbol.
var ErrNoSymbols = errors.New("no symbols requested")

// Fetcher performs one upstream fetch with fallback. *collector.QuoteFetcher
// satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, symbols []string) model.FetchResult
}

// HistorySource returns a fresh price series. *collector.Collector
// satisfies it.
type HistorySource interface {
	History(ctx context.Context, symbol string, days int) model.PriceSeries
}

// Recorder keeps a local copy of accepted quotes. store.QuoteRecorder
// implementations satisfy it.
type Recorder interface {
	RecordQuotes(ctx context.Context, quotes []model.Quote) error
	QuoteHistory(ctx context.Context, symbol string, since time.Time) (model.PriceSeries, error)
}

// Snapshot is the answer to a quote request.
type Snapshot struct {
	Quotes    map[string]model.Quote `json:"quotes"`
	FromCache bool                   `json:"from_cache"`
	Success   bool                   `json:"success"`
	Source    string                 `json:"source"`
	FetchedAt time.Time              `json:"fetched_at"`
}

// Service composes fetcher, cache and bus.
type Service struct {
	fetcher  Fetcher
	history  HistorySource
	cache    *cache.QuoteCache
	bus      *bus.Bus
	recorder Recorder
	metrics  *metrics.Metrics
	group    singleflight.Group
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder records accepted quotes and serves recorded history when
// upstream history is unavailable.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithMetrics enables cache and publish metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service.
func NewService(fetcher Fetcher, history HistorySource, c *cache.QuoteCache, b *bus.Bus, opts ...Option) *Service {
	s := &Service{
		fetcher: fetcher,
		history: history,
		cache:   c,
		bus:     b,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get serves symbols from a fresh cache entry, or refreshes on a miss.
// Concurrent misses for the same symbol set share one fetch.
func (s *Service) Get(ctx context.Context, symbols []string) (Snapshot, error) {
	symbols = model.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return Snapshot{}, ErrNoSymbols
	}

	if e, ok := s.cache.Get(symbols); ok {
		s.metrics.CacheLookup(true)
		return Snapshot{
			Quotes:    e.Quotes,
			FromCache: true,
			Success:   true,
			Source:    model.SourceCache,
			FetchedAt: e.FetchedAt,
		}, nil
	}
	s.metrics.CacheLookup(false)

	v, err, shared := s.group.Do(cache.Key(symbols), func() (any, error) {
		return s.refresh(ctx, symbols)
	})
	snap := v.(Snapshot)
	if shared {
		snap.Quotes = maps.Clone(snap.Quotes)
	}
	return snap, err
}

// GetFresh bypasses the cache and always fetches, overwriting the entry.
func (s *Service) GetFresh(ctx context.Context, symbols []string) (Snapshot, error) {
	symbols = model.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return Snapshot{}, ErrNoSymbols
	}
	return s.refresh(ctx, symbols)
}

// refresh runs one cycle: fetch, cache write, publish, record. Failed
// fetches are returned to the caller but never stored or published.
func (s *Service) refresh(ctx context.Context, symbols []string) (Snapshot, error) {
	res := s.fetcher.Fetch(ctx, symbols)
	snap := Snapshot{
		Quotes:    res.Quotes,
		Success:   res.Success,
		Source:    res.Source,
		FetchedAt: res.FetchedAt,
	}
	if !res.Success {
		return snap, nil
	}
	if err := ctx.Err(); err != nil {
		log.Debug().Err(err).Strs("symbols", symbols).Msg("refresh cancelled, result discarded")
		return snap, nil
	}

	stored, err := s.cache.PutAt(symbols, res.Quotes, res.FetchedAt)
	if err != nil {
		log.Error().Err(err).Strs("symbols", symbols).Msg("cache integrity failure")
		return snap, fmt.Errorf("cache write: %w", err)
	}
	s.metrics.SetCacheEntries(s.cache.Len())
	if !stored {
		s.metrics.CacheWriteRejected()
		log.Debug().Strs("symbols", symbols).Time("fetched_at", res.FetchedAt).Msg("stale refresh rejected")
		return snap, nil
	}

	delivered := s.bus.PublishAll(res.Quotes)
	s.metrics.Delivered(delivered)
	s.record(ctx, res.Quotes)
	return snap, nil
}

func (s *Service) record(ctx context.Context, quotes map[string]model.Quote) {
	if s.recorder == nil {
		return
	}
	list := make([]model.Quote, 0, len(quotes))
	for _, q := range quotes {
		list = append(list, q)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Symbol < list[j].Symbol })
	if err := s.recorder.RecordQuotes(ctx, list); err != nil {
		log.Error().Err(err).Msg("record quotes failed")
	}
}

// History returns a fresh upstream series, falling back to recorded
// quotes when upstream has none.
func (s *Service) History(ctx context.Context, symbol string, days int) model.PriceSeries {
	symbol = model.NormalizeSymbol(symbol)
	series := s.history.History(ctx, symbol, days)
	if series.Len() > 0 || s.recorder == nil {
		return series
	}
	if days <= 0 {
		days = defaultHistoryDays
	}
	local, err := s.recorder.QuoteHistory(ctx, symbol, s.now().AddDate(0, 0, -days))
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("recorded history unavailable")
		return series
	}
	return local
}

// Indicators computes technical indicators over a freshly fetched series.
func (s *Service) Indicators(ctx context.Context, symbol string, days int) model.IndicatorResult {
	series := s.History(ctx, symbol, days)
	res := calculator.Compute(series)
	if !res.Sufficient() && series.Len() > 0 {
		log.Debug().Str("symbol", res.Symbol).Int("points", series.Len()).Msg("series too short for indicators")
	}
	return res
}

// Purge drops cache entries older than maxAge.
func (s *Service) Purge(maxAge time.Duration) int {
	n := s.cache.Purge(s.now().Add(-maxAge))
	s.metrics.SetCacheEntries(s.cache.Len())
	return n
}
