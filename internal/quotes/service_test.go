package quotes_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"QuoteSentinel/internal/alert"
	"QuoteSentinel/internal/bus"
	"QuoteSentinel/internal/cache"
	"QuoteSentinel/internal/collector"
	"QuoteSentinel/internal/model"
	"QuoteSentinel/internal/quotes"
	"QuoteSentinel/internal/store"
)

type fixture struct {
	provider *collector.MockProvider
	cache    *cache.QuoteCache
	bus      *bus.Bus
	service  *quotes.Service
}

func newFixture(t *testing.T, opts ...quotes.Option) *fixture {
	t.Helper()
	p := &collector.MockProvider{Prices: map[string]float64{"soja": 120, "milho": 85, "bitcoin": 64000}}
	c := cache.New(5 * time.Minute)
	b := bus.New()
	f := collector.NewQuoteFetcher(p, c, nil)
	return &fixture{
		provider: p,
		cache:    c,
		bus:      b,
		service:  quotes.NewService(f, collector.NewCollector(f), c, b, opts...),
	}
}

func TestGet_MissThenHit(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	snap, err := fx.service.Get(ctx, []string{"soja", "milho"})
	require.NoError(t, err)
	require.False(t, snap.FromCache)
	require.True(t, snap.Success)
	require.Equal(t, 120.0, snap.Quotes["soja"].Price)

	snap, err = fx.service.Get(ctx, []string{"MILHO", "soja"})
	require.NoError(t, err)
	require.True(t, snap.FromCache)
	require.Equal(t, 85.0, snap.Quotes["milho"].Price)
	require.Equal(t, 1, fx.provider.Calls())
}

func TestGet_NoSymbols(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.service.Get(context.Background(), []string{" ", ""})
	require.ErrorIs(t, err, quotes.ErrNoSymbols)
}

func TestGetFresh_AlwaysFetchesAndPublishes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	var published []float64
	fx.bus.Subscribe("soja", func(q model.Quote) { published = append(published, q.Price) })

	_, err := fx.service.GetFresh(ctx, []string{"soja"})
	require.NoError(t, err)
	fx.provider.SetPrice("soja", 121)
	snap, err := fx.service.GetFresh(ctx, []string{"soja"})
	require.NoError(t, err)
	require.Equal(t, 121.0, snap.Quotes["soja"].Price)

	require.Equal(t, 2, fx.provider.Calls())
	require.Equal(t, []float64{120, 121}, published)

	entry, ok := fx.cache.Get([]string{"soja"})
	require.True(t, ok)
	require.Equal(t, 121.0, entry.Quotes["soja"].Price)
}

func TestRefresh_FailureNotCachedOrPublished(t *testing.T) {
	fx := newFixture(t)
	fx.provider.Err = errors.New("upstream down")

	var published int
	fx.bus.Subscribe("soja", func(model.Quote) { published++ })

	snap, err := fx.service.Get(context.Background(), []string{"soja"})
	require.NoError(t, err)
	require.False(t, snap.Success)
	require.Equal(t, model.SourceFallback, snap.Source)
	require.Equal(t, 120.0, snap.Quotes["soja"].Price)

	require.Zero(t, published)
	require.Zero(t, fx.cache.Len())
}

func TestRefresh_CancelledContextDoesNotWrite(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := fx.service.GetFresh(ctx, []string{"soja"})
	require.NoError(t, err)
	require.True(t, snap.Success)
	require.Zero(t, fx.cache.Len())
}

func TestRefresh_KeyCollisionIsReported(t *testing.T) {
	fx := newFixture(t)
	fx.provider.SetPrice("a", 1)
	fx.provider.SetPrice("b", 2)
	fx.provider.SetPrice("a,b", 3)
	ctx := context.Background()

	_, err := fx.service.Get(ctx, []string{"a", "b"})
	require.NoError(t, err)

	_, err = fx.service.Get(ctx, []string{"a,b"})
	require.ErrorIs(t, err, cache.ErrKeyCollision)
}

// gatedProvider blocks FetchQuotes until release is closed.
type gatedProvider struct {
	collector.MockProvider
	release chan struct{}
	entered atomic.Int32
}

func (g *gatedProvider) FetchQuotes(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	g.entered.Add(1)
	<-g.release
	return g.MockProvider.FetchQuotes(ctx, symbols)
}

func TestGet_CoalescesConcurrentMisses(t *testing.T) {
	g := &gatedProvider{release: make(chan struct{})}
	g.SetPrice("soja", 120)
	c := cache.New(time.Minute)
	f := collector.NewQuoteFetcher(g, c, nil)
	svc := quotes.NewService(f, collector.NewCollector(f), c, bus.New())

	const callers = 8
	var wg sync.WaitGroup
	results := make([]quotes.Snapshot, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := svc.Get(context.Background(), []string{"soja"})
			require.NoError(t, err)
			results[i] = snap
		}(i)
	}
	require.Eventually(t, func() bool { return g.entered.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(g.release)
	wg.Wait()

	require.Equal(t, 1, g.Calls())
	for _, r := range results {
		require.Equal(t, 120.0, r.Quotes["soja"].Price)
	}
}

func TestIndicators(t *testing.T) {
	fx := newFixture(t)
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = float64(10 + i)
	}
	fx.provider.History = map[string][]float64{"soja": prices}

	res := fx.service.Indicators(context.Background(), "soja", 20)
	require.NotNil(t, res.SMA20)
	require.InDelta(t, 19.5, *res.SMA20, 1e-9)
	require.Nil(t, res.SMA50)
}

func TestHistory_FallsBackToRecordedQuotes(t *testing.T) {
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "q.db"))
	require.NoError(t, err)
	defer db.Close()

	fx := newFixture(t, quotes.WithRecorder(db))
	ctx := context.Background()

	_, err = fx.service.GetFresh(ctx, []string{"soja"})
	require.NoError(t, err)

	fx.provider.Err = errors.New("history down")
	series := fx.service.History(ctx, "soja", 7)
	require.Equal(t, []float64{120}, series.Prices())
}

type stalledSink struct{ calls atomic.Int32 }

func (*stalledSink) Name() string { return "stalled" }

func (s *stalledSink) Notify(ctx context.Context, _ model.AlertEvent) error {
	s.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestGetFresh_StalledSinkDoesNotDelayRefresh(t *testing.T) {
	fx := newFixture(t)
	sink := &stalledSink{}
	engine := alert.NewEngine(store.NewNoopStore(), sink)
	engine.Attach(fx.bus)
	_, err := engine.Create(t.Context(), "u1", "soja", "above", 100, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	snap, err := fx.service.GetFresh(ctx, []string{"soja"})
	require.NoError(t, err)
	require.Equal(t, 120.0, snap.Quotes["soja"].Price)
	require.Less(t, time.Since(start), 100*time.Millisecond)

	a := engine.List("u1")[0]
	require.True(t, a.Triggered)
	require.Eventually(t, func() bool { return sink.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	closeCtx, closeCancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer closeCancel()
	require.ErrorIs(t, engine.Close(closeCtx), context.DeadlineExceeded)
}
