package calculator

import "QuoteSentinel/internal/model"

// RSI computes the relative strength index over the first period price
// changes. It needs at least period+1 prices. A window without losses
// yields 100.
func RSI(prices []float64, period int) (value float64, ok bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0, true
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), true
}

// RSIZone labels an RSI value: overbought at 70 and above, oversold at 30
// and below.
func RSIZone(rsi float64) string {
	switch {
	case rsi >= 70:
		return model.RSIOverbought
	case rsi <= 30:
		return model.RSIOversold
	default:
		return model.RSINeutral
	}
}
