package notifier

import (
	"fmt"
	"strings"
	"time"

	"QuoteSentinel/internal/model"
	"QuoteSentinel/internal/strategy"
)

func directionLabel(c model.Condition) string {
	if c == model.ConditionBelow {
		return "fell to or below"
	}
	return "rose to or above"
}

// FormatAlert formats an alert-triggered event into a Telegram message.
func FormatAlert(evt model.AlertEvent) string {
	a := evt.Alert
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🔔 <b>Price alert</b> | %s\n\n", strings.ToUpper(a.Symbol)))
	b.WriteString(fmt.Sprintf("%s %s %.2f\n", strings.ToUpper(a.Symbol), directionLabel(a.Condition), a.ThresholdPrice))
	b.WriteString(fmt.Sprintf("Current price: %.2f", evt.Quote.Price))
	if evt.Quote.Unit != "" {
		b.WriteString(fmt.Sprintf(" / %s", evt.Quote.Unit))
	}
	b.WriteString("\n")
	if a.Description != "" {
		b.WriteString(fmt.Sprintf("Note: %s\n", a.Description))
	}
	b.WriteString(fmt.Sprintf("Triggered at: %s\n", evt.TriggeredAt.Format("2006-01-02 15:04")))
	return b.String()
}

// FormatQuotes formats a set of quotes, ordered by symbol.
func FormatQuotes(quotes map[string]model.Quote, fromCache bool, at time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Quotes</b> | %s", at.Format("2006-01-02 15:04")))
	if fromCache {
		b.WriteString(" (cached)")
	}
	b.WriteString("\n\n")

	if len(quotes) == 0 {
		b.WriteString("No data available.\n")
		return b.String()
	}
	symbols := make([]string, 0, len(quotes))
	for s := range quotes {
		symbols = append(symbols, s)
	}
	symbols = model.NormalizeSymbols(symbols)
	for _, s := range symbols {
		q := quotes[s]
		arrow := "▲"
		if q.VariationPercent < 0 {
			arrow = "▼"
		}
		b.WriteString(fmt.Sprintf("%s: %.2f %s%+.2f%%", strings.ToUpper(s), q.Price, arrow, q.VariationPercent))
		if q.Unit != "" {
			b.WriteString(fmt.Sprintf(" (%s)", q.Unit))
		}
		if q.Source == model.SourceCache || q.Source == model.SourceFallback {
			b.WriteString(fmt.Sprintf(" [%s]", q.Source))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func optional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

// FormatIndicators formats an indicator result for display.
func FormatIndicators(r model.IndicatorResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>%s indicators</b> (%d points)\n\n", strings.ToUpper(r.Symbol), r.Points))
	if r.Points == 0 {
		b.WriteString("No history available.\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("Price: %s", optional(r.CurrentPrice)))
	if r.PriceChangePercent != nil {
		b.WriteString(fmt.Sprintf(" (%+.2f%%)", *r.PriceChangePercent))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Range: %s - %s\n", optional(r.Low), optional(r.High)))
	if !r.Sufficient() {
		b.WriteString("Insufficient data for indicators.\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("SMA20: %s | SMA50: %s\n", optional(r.SMA20), optional(r.SMA50)))
	b.WriteString(fmt.Sprintf("RSI14: %s", optional(r.RSI)))
	if r.RSIZone != "" {
		b.WriteString(fmt.Sprintf(" (%s)", r.RSIZone))
	}
	b.WriteString("\n")
	if r.MACD != nil {
		b.WriteString(fmt.Sprintf("MACD: %.4f | signal %.4f | hist %+.4f\n", r.MACD.Line, r.MACD.Signal, r.MACD.Histogram))
	} else {
		b.WriteString("MACD: n/a\n")
	}
	if r.Bollinger != nil {
		b.WriteString(fmt.Sprintf("Bollinger: %.2f / %.2f / %.2f\n", r.Bollinger.Lower, r.Bollinger.Middle, r.Bollinger.Upper))
	} else {
		b.WriteString("Bollinger: n/a\n")
	}
	return b.String()
}

// FormatAssessment formats the weighted factor breakdown of a symbol.
func FormatAssessment(a strategy.Assessment) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🧭 <b>%s outlook</b>: %s (score %+.2f)\n", strings.ToUpper(a.Symbol), a.Signal, a.TotalScore))
	for _, f := range a.Factors {
		b.WriteString(fmt.Sprintf("• %s: %+.1f × %.2f = %+.3f (%s)\n", f.Name, f.RawScore, f.Weight, f.Weighted, f.Commentary))
	}
	if a.Warning != "" {
		b.WriteString(fmt.Sprintf("⚠️ %s\n", a.Warning))
	}
	return b.String()
}

// FormatAlertList formats alerts for the /alerts command.
func FormatAlertList(alerts []model.Alert) string {
	var b strings.Builder
	b.WriteString("🔔 <b>Your alerts</b>\n\n")
	if len(alerts) == 0 {
		b.WriteString("No alerts registered.\n")
		return b.String()
	}
	for _, a := range alerts {
		state := "active"
		switch {
		case a.Triggered:
			state = "triggered"
		case !a.Enabled:
			state = "paused"
		}
		b.WriteString(fmt.Sprintf("• %s %s %.2f [%s] <code>%s</code>\n",
			strings.ToUpper(a.Symbol), a.Condition, a.ThresholdPrice, state, a.ID))
	}
	return b.String()
}
