package strategy

import (
	"fmt"

	"QuoteSentinel/internal/model"
)

// Factor is one weighted component of an assessment. RawScore ranges from
// -2 (stretched upwards) to +2 (depressed).
type Factor struct {
	Name       string  `json:"name"`
	RawScore   float64 `json:"raw_score"`
	Weight     float64 `json:"weight"`
	Weighted   float64 `json:"weighted"`
	Commentary string  `json:"commentary"`
}

func newFactor(name string, score, weight float64, commentary string) Factor {
	return Factor{Name: name, RawScore: score, Weight: weight, Weighted: score * weight, Commentary: commentary}
}

// scoreMADeviation scores how far the price sits from its longest available
// moving average.
// Weight: 0.30
func scoreMADeviation(r model.IndicatorResult) (Factor, bool) {
	if r.CurrentPrice == nil {
		return Factor{}, false
	}
	ma, label := r.SMA50, "SMA50"
	if ma == nil {
		ma, label = r.SMA20, "SMA20"
	}
	if ma == nil || *ma == 0 {
		return Factor{}, false
	}
	deviation := (*r.CurrentPrice - *ma) / *ma * 100

	var score float64
	switch {
	case deviation <= -15:
		score = 2.0
	case deviation <= -8:
		score = 1.5
	case deviation <= -4:
		score = 1.0
	case deviation <= 0:
		score = 0.5
	case deviation <= 4:
		score = 0
	case deviation <= 8:
		score = -0.5
	case deviation <= 12:
		score = -1.0
	case deviation <= 15:
		score = -1.5
	default:
		score = -2.0
	}
	return newFactor(label+" deviation", score, 0.30, fmt.Sprintf("%+.1f%%", deviation)), true
}

// scoreRSI scores the RSI(14).
// Weight: 0.30
func scoreRSI(r model.IndicatorResult) (Factor, bool) {
	if r.RSI == nil {
		return Factor{}, false
	}
	rsi := *r.RSI
	var score float64
	switch {
	case rsi <= 25:
		score = 2.0
	case rsi <= 30:
		score = 1.5
	case rsi <= 40:
		score = 1.0
	case rsi <= 45:
		score = 0.5
	case rsi <= 55:
		score = 0
	case rsi <= 60:
		score = -0.5
	case rsi <= 70:
		score = -1.0
	case rsi <= 80:
		score = -1.5
	default:
		score = -2.0
	}
	return newFactor("RSI", score, 0.30, fmt.Sprintf("RSI=%.0f", rsi)), true
}

// scoreMACD scores momentum from the MACD line and histogram.
// Weight: 0.15
func scoreMACD(r model.IndicatorResult) (Factor, bool) {
	if r.MACD == nil {
		return Factor{}, false
	}
	m := r.MACD
	var score float64
	var commentary string
	switch {
	case m.Histogram > 0 && m.Line > 0:
		score, commentary = 1.0, "bullish momentum"
	case m.Histogram > 0:
		score, commentary = 0.5, "recovering"
	case m.Histogram < 0 && m.Line < 0:
		score, commentary = -1.0, "bearish momentum"
	case m.Histogram < 0:
		score, commentary = -0.5, "fading"
	default:
		commentary = "flat"
	}
	return newFactor("MACD", score, 0.15, commentary), true
}

// scoreBollinger scores where the price sits inside the bands.
// Weight: 0.15
func scoreBollinger(r model.IndicatorResult) (Factor, bool) {
	if r.Bollinger == nil || r.CurrentPrice == nil {
		return Factor{}, false
	}
	b := r.Bollinger
	width := b.Upper - b.Lower
	if width <= 0 {
		return newFactor("Bollinger", 0, 0.15, "bands collapsed"), true
	}
	pct := (*r.CurrentPrice - b.Lower) / width

	var score float64
	switch {
	case pct <= 0:
		score = 2.0
	case pct <= 0.2:
		score = 1.0
	case pct < 0.8:
		score = 0
	case pct < 1:
		score = -1.0
	default:
		score = -2.0
	}
	return newFactor("Bollinger", score, 0.15, fmt.Sprintf("%%b=%.2f", pct)), true
}

// scoreRangePosition scores where the price sits in the period range.
// Weight: 0.10
// Near the top it only reaches -2 when the other factors agree (avg < -1).
func scoreRangePosition(r model.IndicatorResult, otherFactorsAvg float64) (Factor, bool) {
	if r.High == nil || r.Low == nil || r.CurrentPrice == nil || *r.High <= *r.Low {
		return Factor{}, false
	}
	pos := (*r.CurrentPrice - *r.Low) / (*r.High - *r.Low) * 100

	var score float64
	switch {
	case pos <= 10:
		score = 2.0
	case pos <= 20:
		score = 1.5
	case pos <= 30:
		score = 1.0
	case pos <= 40:
		score = 0.5
	case pos <= 60:
		score = 0
	case pos <= 70:
		score = -0.5
	case pos <= 80:
		score = -1.0
	case pos <= 95:
		score = -1.5
	default:
		if otherFactorsAvg < -1 {
			score = -2.0
		} else {
			score = -1.0
		}
	}
	return newFactor("range position", score, 0.10, fmt.Sprintf("position=%.0f%%", pos)), true
}
