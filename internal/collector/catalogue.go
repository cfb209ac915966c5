package collector

import (
	"time"

	"QuoteSentinel/internal/model"
)

// Class groups symbols that share an upstream and a refresh cadence.
type Class string

const (
	ClassAgro   Class = "agro"
	ClassCrypto Class = "crypto"
)

// Commodity describes a tracked agricultural commodity.
type Commodity struct {
	Symbol string
	Name   string
	Unit   string
	// Code is the AgroLink commodity code.
	Code string
	// BasePrice is the reference price served when nothing fresher exists.
	BasePrice float64
}

var commodities = []Commodity{
	{Symbol: "soja", Name: "Soja", Unit: "saca 60kg", Code: "SOJA", BasePrice: 120},
	{Symbol: "milho", Name: "Milho", Unit: "saca 60kg", Code: "MILHO", BasePrice: 85},
	{Symbol: "cafe", Name: "Café", Unit: "saca 60kg", Code: "CAFE", BasePrice: 450},
	{Symbol: "algodao", Name: "Algodão", Unit: "saca 60kg", Code: "ALGODAO", BasePrice: 180},
	{Symbol: "trigo", Name: "Trigo", Unit: "saca 60kg", Code: "TRIGO", BasePrice: 95},
	{Symbol: "acucar", Name: "Açúcar", Unit: "saca 50kg", Code: "ACUCAR", BasePrice: 75},
	{Symbol: "boi", Name: "Boi Gordo", Unit: "arroba", Code: "BOI"},
	{Symbol: "suino", Name: "Suíno", Unit: "kg", Code: "SUINO"},
}

var (
	bySymbol = map[string]Commodity{}
	byCode   = map[string]Commodity{}
)

func init() {
	for _, c := range commodities {
		bySymbol[c.Symbol] = c
		byCode[c.Code] = c
	}
}

// LookupCommodity returns the catalogue entry for symbol.
func LookupCommodity(symbol string) (Commodity, bool) {
	c, ok := bySymbol[model.NormalizeSymbol(symbol)]
	return c, ok
}

// Commodities returns the catalogue in display order.
func Commodities() []Commodity {
	out := make([]Commodity, len(commodities))
	copy(out, commodities)
	return out
}

// ClassOf reports the data class of a symbol. Anything that is not a
// catalogued commodity is treated as a crypto asset id.
func ClassOf(symbol string) Class {
	if _, ok := LookupCommodity(symbol); ok {
		return ClassAgro
	}
	return ClassCrypto
}

// FallbackQuote returns the fixed reference quote for symbol stamped at ts,
// if one exists.
func FallbackQuote(symbol string, ts time.Time) (model.Quote, bool) {
	c, ok := LookupCommodity(symbol)
	if !ok || c.BasePrice <= 0 {
		return model.Quote{}, false
	}
	q := model.NewQuote(c.Symbol, c.BasePrice, nil, 0, c.Unit, model.SourceFallback, ts)
	q.Name = c.Name
	return q, true
}
