package calculator

import "QuoteSentinel/internal/model"

// Default indicator parameters.
const (
	ShortSMAPeriod   = 20
	LongSMAPeriod    = 50
	RSIPeriod        = 14
	MACDFast         = 12
	MACDSlow         = 26
	MACDSignal       = 9
	BollingerPeriod  = 20
	BollingerStdDevs = 2.0
)

// Compute derives every indicator the series is long enough for.
func Compute(series model.PriceSeries) model.IndicatorResult {
	prices := series.Prices()
	res := model.IndicatorResult{Symbol: series.Symbol, Points: len(prices)}

	if v, ok := SMA(prices, ShortSMAPeriod); ok {
		res.SMA20 = &v
	}
	if v, ok := SMA(prices, LongSMAPeriod); ok {
		res.SMA50 = &v
	}
	if v, ok := RSI(prices, RSIPeriod); ok {
		res.RSI = &v
		res.RSIZone = RSIZone(v)
	}
	if m, ok := MACD(prices, MACDFast, MACDSlow, MACDSignal); ok {
		res.MACD = &m
	}
	if b, ok := Bollinger(prices, BollingerPeriod, BollingerStdDevs); ok {
		res.Bollinger = &b
	}
	if len(prices) > 0 {
		current := prices[len(prices)-1]
		res.CurrentPrice = &current
	}
	if high, low, ok := Range(prices); ok {
		res.High = &high
		res.Low = &low
	}
	if abs, pct, absOK, pctOK := Change(prices); absOK {
		res.PriceChange = &abs
		if pctOK {
			res.PriceChangePercent = &pct
		}
	}
	return res
}
