package calculator

import (
	"math"

	"QuoteSentinel/internal/model"
)

// Bollinger computes the bands over the last period prices using the
// population standard deviation.
func Bollinger(prices []float64, period int, k float64) (model.Bollinger, bool) {
	middle, ok := SMA(prices, period)
	if !ok {
		return model.Bollinger{}, false
	}
	variance := 0.0
	for _, p := range prices[len(prices)-period:] {
		d := p - middle
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(period))
	return model.Bollinger{
		Upper:  middle + k*stddev,
		Middle: middle,
		Lower:  middle - k*stddev,
	}, true
}
