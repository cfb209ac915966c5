package calculator

// SMA returns the arithmetic mean of the last period prices.
// ok is false when period <= 0 or there are fewer than period prices.
func SMA(prices []float64, period int) (value float64, ok bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), true
}

// EMA returns the exponential moving average of prices, seeded with the
// first price and smoothed with k = 2/(period+1) over the whole series.
func EMA(prices []float64, period int) (value float64, ok bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	return emaFrom(prices, 2.0/float64(period+1)), true
}

func emaFrom(prices []float64, k float64) float64 {
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = p*k + ema*(1-k)
	}
	return ema
}
