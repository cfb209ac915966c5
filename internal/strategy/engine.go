package strategy

import "QuoteSentinel/internal/model"

// Signal labels, from most to least favourable.
const (
	SignalStrongBuy = "strong buy"
	SignalBuy       = "buy"
	SignalHold      = "hold"
	SignalReduce    = "reduce"
	SignalSell      = "sell"
)

// Tiers maps a normalised score to a signal label.
var Tiers = []struct {
	MinScore float64
	Signal   string
}{
	{1.2, SignalStrongBuy},
	{0.5, SignalBuy},
	{-0.5, SignalHold},
	{-1.2, SignalReduce},
}

// DefaultSignal applies below the last tier.
const DefaultSignal = SignalSell

// Assessment summarises an indicator set as a weighted score.
type Assessment struct {
	Symbol     string   `json:"symbol"`
	Factors    []Factor `json:"factors"`
	TotalScore float64  `json:"total_score"`
	Signal     string   `json:"signal"`
	Warning    string   `json:"warning,omitempty"`
}

func mapSignal(score float64) string {
	for _, t := range Tiers {
		if score >= t.MinScore {
			return t.Signal
		}
	}
	return DefaultSignal
}

// Evaluate scores the indicators of one symbol. Factors whose indicator is
// missing are skipped and the total is normalised over the remaining weight.
// It returns false when no factor could be scored.
func Evaluate(r model.IndicatorResult) (Assessment, bool) {
	var factors []Factor
	var rawSum float64
	for _, score := range []func(model.IndicatorResult) (Factor, bool){scoreMADeviation, scoreRSI, scoreMACD, scoreBollinger} {
		if f, ok := score(r); ok {
			factors = append(factors, f)
			rawSum += f.RawScore
		}
	}
	var otherFactorsAvg float64
	if len(factors) > 0 {
		otherFactorsAvg = rawSum / float64(len(factors))
	}
	if f, ok := scoreRangePosition(r, otherFactorsAvg); ok {
		factors = append(factors, f)
	}
	if len(factors) == 0 {
		return Assessment{Symbol: r.Symbol}, false
	}

	var weighted, weights float64
	for _, f := range factors {
		weighted += f.Weighted
		weights += f.Weight
	}
	total := weighted / weights

	a := Assessment{
		Symbol:     r.Symbol,
		Factors:    factors,
		TotalScore: total,
		Signal:     mapSignal(total),
	}
	if r.RSI != nil {
		switch {
		case *r.RSI > 85:
			a.Warning = "RSI above 85, consider taking profit"
		case *r.RSI < 15:
			a.Warning = "RSI below 15, capitulation risk"
		}
	}
	return a, true
}
