package model

// MACD holds the moving average convergence/divergence values.
type MACD struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// Bollinger holds Bollinger Band values.
type Bollinger struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// RSI zones.
const (
	RSIOverbought = "overbought"
	RSIOversold   = "oversold"
	RSINeutral    = "neutral"
)

// IndicatorResult holds the technical indicators computed from a price
// series. A nil field means the series was too short for it.
type IndicatorResult struct {
	Symbol             string     `json:"symbol"`
	Points             int        `json:"points"`
	SMA20              *float64   `json:"sma20"`
	SMA50              *float64   `json:"sma50"`
	RSI                *float64   `json:"rsi"`
	RSIZone            string     `json:"rsi_zone,omitempty"`
	MACD               *MACD      `json:"macd"`
	Bollinger          *Bollinger `json:"bollinger"`
	CurrentPrice       *float64   `json:"current_price"`
	PriceChange        *float64   `json:"price_change"`
	PriceChangePercent *float64   `json:"price_change_percent"`
	High               *float64   `json:"high"`
	Low                *float64   `json:"low"`
}

// Sufficient reports whether at least one indicator could be computed.
func (r IndicatorResult) Sufficient() bool {
	return r.SMA20 != nil || r.RSI != nil || r.MACD != nil || r.Bollinger != nil
}
