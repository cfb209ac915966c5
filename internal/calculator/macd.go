package calculator

import "QuoteSentinel/internal/model"

// MACD computes the MACD line, its signal line and the histogram.
//
// The line is EMA(fast) - EMA(slow) over the whole series. The signal is
// the EMA recurrence over the MACD values of every prefix that is at least
// slow long, seeded with the first of them. Requires len(prices) >= slow.
func MACD(prices []float64, fast, slow, signalPeriod int) (model.MACD, bool) {
	if fast <= 0 || slow <= 0 || signalPeriod <= 0 || fast >= slow || len(prices) < slow {
		return model.MACD{}, false
	}

	kFast := 2.0 / float64(fast+1)
	kSlow := 2.0 / float64(slow+1)

	// Both EMAs are seeded with prices[0]; walk once and sample each prefix.
	emaFast, emaSlow := prices[0], prices[0]
	lines := make([]float64, 0, len(prices)-slow+1)
	for i := 1; i < len(prices); i++ {
		emaFast = prices[i]*kFast + emaFast*(1-kFast)
		emaSlow = prices[i]*kSlow + emaSlow*(1-kSlow)
		if i+1 >= slow {
			lines = append(lines, emaFast-emaSlow)
		}
	}

	line := lines[len(lines)-1]
	signal := emaFrom(lines, 2.0/float64(signalPeriod+1))
	return model.MACD{
		Line:      line,
		Signal:    signal,
		Histogram: line - signal,
	}, true
}
