package collector_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"QuoteSentinel/internal/collector"
	"QuoteSentinel/internal/model"
)

func TestAgroLink_FetchQuotes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/quotes", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"quotes":[
			{"commodity":"SOJA","price":"132.50","previousPrice":125,"variationPercent":1.0,"lastUpdate":"2024-05-01T12:00:00Z"},
			{"commodity":"MILHO","price":80,"variationPercent":-0.5,"lastUpdate":"2024-05-01T12:00:00Z"},
			{"commodity":"CAFE","price":-3},
			{"commodity":"XYZ","price":1}
		]}`))
	}))
	defer srv.Close()

	p := collector.NewAgroLinkProvider(srv.URL, "secret", "", time.Second)
	quotes, err := p.FetchQuotes(t.Context(), []string{"soja", "milho", "cafe"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	soja := quotes["soja"]
	require.Equal(t, 132.5, soja.Price)
	require.NotNil(t, soja.PreviousPrice)
	require.InDelta(t, 6.0, soja.VariationPercent, 1e-9)
	require.Equal(t, "saca 60kg", soja.Unit)
	require.Equal(t, "agrolink", soja.Source)

	milho := quotes["milho"]
	require.Nil(t, milho.PreviousPrice)
	require.Equal(t, -0.5, milho.VariationPercent)
}

func TestAgroLink_Unauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := collector.NewAgroLinkProvider(srv.URL, "", "", time.Second)
	_, err := p.FetchQuotes(t.Context(), []string{"soja"})
	require.ErrorContains(t, err, "unauthorized")
}

func TestAgroLink_FetchHistoryAscending(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/quotes/SOJA/history", r.URL.Path)
		require.Equal(t, "3", r.URL.Query().Get("days"))
		w.Write([]byte(`{"history":[
			{"date":"2024-05-03","price":"122"},
			{"date":"2024-05-01","price":120},
			{"date":"2024-05-02","price":121}
		]}`))
	}))
	defer srv.Close()

	p := collector.NewAgroLinkProvider(srv.URL, "", "", time.Second)
	series, err := p.FetchHistory(t.Context(), "soja", 3)
	require.NoError(t, err)
	require.Equal(t, []float64{120, 121, 122}, series.Prices())
}

func TestCoinGecko_FetchQuotes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/simple/price", r.URL.Path)
		require.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
		require.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.Write([]byte(`{"bitcoin":{"usd":64000.5,"usd_24h_change":2.5},"ethereum":{"usd":3100}}`))
	}))
	defer srv.Close()

	p := collector.NewCoinGeckoProvider(srv.URL, "", time.Second)
	quotes, err := p.FetchQuotes(t.Context(), []string{"bitcoin", "eth"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	require.Equal(t, 64000.5, quotes["bitcoin"].Price)
	require.Equal(t, 2.5, quotes["bitcoin"].VariationPercent)
	require.Equal(t, 3100.0, quotes["eth"].Price)
	require.Equal(t, "coingecko", quotes["eth"].Source)
}

func TestCoinGecko_FetchHistory(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/coins/bitcoin/market_chart", r.URL.Path)
		w.Write([]byte(`{"prices":[[1714608000000,62000],[1714521600000,61000]]}`))
	}))
	defer srv.Close()

	p := collector.NewCoinGeckoProvider(srv.URL, "", time.Second)
	series, err := p.FetchHistory(t.Context(), "btc", 2)
	require.NoError(t, err)
	require.Equal(t, "btc", series.Symbol)
	require.Equal(t, []float64{61000, 62000}, series.Prices())
}

func TestCoinGecko_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := collector.NewCoinGeckoProvider(srv.URL, "", time.Second)
	_, err := p.FetchQuotes(t.Context(), []string{"bitcoin"})
	require.ErrorContains(t, err, "rate limited")
}

func TestRouter_SplitsByClass(t *testing.T) {
	t.Parallel()

	agro := &collector.MockProvider{Prices: map[string]float64{"soja": 120}}
	crypto := &collector.MockProvider{Err: errors.New("down")}
	r := &collector.RouterProvider{Agro: agro, Crypto: crypto}

	quotes, err := r.FetchQuotes(context.Background(), []string{"soja", "bitcoin"})
	require.Error(t, err)
	require.Len(t, quotes, 1)
	require.Equal(t, 120.0, quotes["soja"].Price)
	require.Equal(t, 1, agro.Calls())
	require.Equal(t, 1, crypto.Calls())
}

func TestClassOf(t *testing.T) {
	require.Equal(t, collector.ClassAgro, collector.ClassOf("SOJA"))
	require.Equal(t, collector.ClassCrypto, collector.ClassOf("bitcoin"))

	q, ok := collector.FallbackQuote("acucar", time.Now())
	require.True(t, ok)
	require.Equal(t, "saca 50kg", q.Unit)
	require.Equal(t, model.SourceFallback, q.Source)

	_, ok = collector.FallbackQuote("boi", time.Now())
	require.False(t, ok)
}
