package calculator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"QuoteSentinel/internal/model"
)

func ramp(start float64, n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = start + float64(i)
	}
	return prices
}

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		period int
		want   float64
		ok     bool
	}{
		{"twenty ascending", ramp(10, 20), 20, 19.5, true},
		{"last window only", []float64{100, 1, 2, 3}, 3, 2, true},
		{"nineteen for twenty", ramp(10, 19), 20, 0, false},
		{"zero period", ramp(1, 5), 0, 0, false},
		{"empty", nil, 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SMA(tt.prices, tt.period)
			require.Equal(t, tt.ok, ok)
			require.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEMA(t *testing.T) {
	got, ok := EMA([]float64{1, 2, 3}, 3)
	require.True(t, ok)
	require.InDelta(t, 2.25, got, 1e-9)

	_, ok = EMA([]float64{1, 2}, 3)
	require.False(t, ok)

	got, ok = EMA([]float64{5, 5, 5, 5}, 2)
	require.True(t, ok)
	require.Equal(t, 5.0, got)
}

func TestRSI_NoLossesIsHundred(t *testing.T) {
	rsi, ok := RSI(ramp(1, 15), 14)
	require.True(t, ok)
	require.False(t, math.IsNaN(rsi))
	require.Equal(t, 100.0, rsi)
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		period int
		want   float64
		ok     bool
	}{
		{"balanced", []float64{1, 2, 1}, 2, 50, true},
		{"only losses", []float64{5, 4, 3}, 2, 0, true},
		{"three to one", []float64{10, 13, 12}, 2, 75, true},
		{"window uses first deltas", []float64{10, 13, 12, 0, 0}, 2, 75, true},
		{"too short", ramp(1, 14), 14, 0, false},
		{"flat", []float64{3, 3, 3}, 2, 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RSI(tt.prices, tt.period)
			require.Equal(t, tt.ok, ok)
			require.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRSIZone(t *testing.T) {
	require.Equal(t, model.RSIOverbought, RSIZone(70))
	require.Equal(t, model.RSIOversold, RSIZone(30))
	require.Equal(t, model.RSINeutral, RSIZone(50))
}

func TestMACD(t *testing.T) {
	_, ok := MACD(ramp(1, 25), 12, 26, 9)
	require.False(t, ok, "needs at least slow prices")

	_, ok = MACD(ramp(1, 40), 26, 12, 9)
	require.False(t, ok, "fast must be shorter than slow")

	flat := make([]float64, 40)
	for i := range flat {
		flat[i] = 42
	}
	m, ok := MACD(flat, 12, 26, 9)
	require.True(t, ok)
	require.InDelta(t, 0, m.Line, 1e-9)
	require.InDelta(t, 0, m.Signal, 1e-9)
	require.InDelta(t, 0, m.Histogram, 1e-9)

	prices := ramp(100, 60)
	m, ok = MACD(prices, 12, 26, 9)
	require.True(t, ok)
	fast, _ := EMA(prices, 12)
	slow, _ := EMA(prices, 26)
	require.InDelta(t, fast-slow, m.Line, 1e-9)
	require.InDelta(t, m.Line-m.Signal, m.Histogram, 1e-9)
	require.Greater(t, m.Line, 0.0, "rising series has a positive MACD line")
}

func TestMACD_ExactlySlowUsesSingleLineValue(t *testing.T) {
	prices := ramp(1, 26)
	m, ok := MACD(prices, 12, 26, 9)
	require.True(t, ok)
	require.InDelta(t, m.Line, m.Signal, 1e-9)
	require.InDelta(t, 0, m.Histogram, 1e-9)
}

func TestBollinger(t *testing.T) {
	b, ok := Bollinger(ramp(10, 20), 20, 2)
	require.True(t, ok)
	require.InDelta(t, 19.5, b.Middle, 1e-9)
	sd := math.Sqrt(399.0 / 12.0)
	require.InDelta(t, 19.5+2*sd, b.Upper, 1e-9)
	require.InDelta(t, 19.5-2*sd, b.Lower, 1e-9)

	_, ok = Bollinger(ramp(10, 19), 20, 2)
	require.False(t, ok)
}

func TestRangeAndChange(t *testing.T) {
	high, low, ok := Range([]float64{3, 9, 1, 4})
	require.True(t, ok)
	require.Equal(t, 9.0, high)
	require.Equal(t, 1.0, low)

	_, _, ok = Range(nil)
	require.False(t, ok)

	abs, pct, absOK, pctOK := Change([]float64{50, 60, 75})
	require.True(t, absOK)
	require.True(t, pctOK)
	require.Equal(t, 25.0, abs)
	require.InDelta(t, 50.0, pct, 1e-9)

	_, _, absOK, pctOK = Change([]float64{0, 10})
	require.True(t, absOK)
	require.False(t, pctOK)
}

func series(prices []float64) model.PriceSeries {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := model.PriceSeries{Symbol: "soja"}
	for i, p := range prices {
		s.Points = append(s.Points, model.PricePoint{Timestamp: start.AddDate(0, 0, i), Price: p})
	}
	return s
}

func TestCompute_ShortSeries(t *testing.T) {
	res := Compute(series(ramp(10, 10)))
	require.Equal(t, 10, res.Points)
	require.Nil(t, res.SMA20)
	require.Nil(t, res.SMA50)
	require.Nil(t, res.MACD)
	require.Nil(t, res.Bollinger)
	require.Nil(t, res.RSI)
	require.False(t, res.Sufficient())
	require.NotNil(t, res.CurrentPrice)
	require.Equal(t, 19.0, *res.CurrentPrice)
}

func TestCompute_EmptySeries(t *testing.T) {
	res := Compute(model.PriceSeries{Symbol: "btc"})
	require.Zero(t, res.Points)
	require.Nil(t, res.CurrentPrice)
	require.Nil(t, res.High)
	require.Nil(t, res.PriceChange)
	require.False(t, res.Sufficient())
}

func TestCompute_FullSeries(t *testing.T) {
	res := Compute(series(ramp(10, 60)))
	require.True(t, res.Sufficient())
	require.NotNil(t, res.SMA20)
	require.InDelta(t, 59.5, *res.SMA20, 1e-9)
	require.NotNil(t, res.SMA50)
	require.InDelta(t, 44.5, *res.SMA50, 1e-9)
	require.NotNil(t, res.RSI)
	require.Equal(t, 100.0, *res.RSI)
	require.Equal(t, model.RSIOverbought, res.RSIZone)
	require.NotNil(t, res.MACD)
	require.NotNil(t, res.Bollinger)
	require.InDelta(t, 59.5, res.Bollinger.Middle, 1e-9)
	require.Equal(t, 69.0, *res.High)
	require.Equal(t, 10.0, *res.Low)
	require.Equal(t, 59.0, *res.PriceChange)
}
