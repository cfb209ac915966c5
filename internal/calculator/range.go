package calculator

import "math"

// Range returns the highest and lowest price of the series.
func Range(prices []float64) (high, low float64, ok bool) {
	if len(prices) == 0 {
		return 0, 0, false
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, p := range prices {
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
	}
	return high, low, true
}

// Change returns the absolute and percentage change from the first to the
// last price. The percentage is not ok when the first price is zero.
func Change(prices []float64) (abs, pct float64, absOK, pctOK bool) {
	if len(prices) < 2 {
		return 0, 0, false, false
	}
	first, last := prices[0], prices[len(prices)-1]
	abs = last - first
	if first == 0 {
		return abs, 0, true, false
	}
	return abs, abs / first * 100, true, true
}
