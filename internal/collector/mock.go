package collector

import (
	"context"
	"sync"
	"time"

	"QuoteSentinel/internal/model"
)

// MockProvider returns controllable fixed data for development and testing.
type MockProvider struct {
	mu sync.Mutex
	// Prices holds the current price per symbol. Symbols without a price
	// are omitted from results.
	Prices map[string]float64
	// Previous holds optional previous prices.
	Previous map[string]float64
	// History overrides the generated series per symbol.
	History map[string][]float64
	// Err, when set, is returned by every call.
	Err   error
	calls int
}

func (m *MockProvider) Name() string { return "mock" }

// SetPrice changes the current price of symbol.
func (m *MockProvider) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Prices == nil {
		m.Prices = map[string]float64{}
	}
	m.Prices[model.NormalizeSymbol(symbol)] = price
}

// Calls returns how many FetchQuotes calls were made.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockProvider) FetchQuotes(_ context.Context, symbols []string) (map[string]model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	now := time.Now()
	quotes := make(map[string]model.Quote, len(symbols))
	for _, s := range model.NormalizeSymbols(symbols) {
		price, ok := m.Prices[s]
		if !ok {
			continue
		}
		var prev *float64
		if p, ok := m.Previous[s]; ok {
			prev = &p
		}
		unit := ""
		if c, ok := LookupCommodity(s); ok {
			unit = c.Unit
		}
		quotes[s] = model.NewQuote(s, price, prev, 0, unit, m.Name(), now)
	}
	return quotes, nil
}

func (m *MockProvider) FetchHistory(_ context.Context, symbol string, days int) (model.PriceSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.PriceSeries{}, m.Err
	}
	symbol = model.NormalizeSymbol(symbol)
	prices, ok := m.History[symbol]
	if !ok {
		prices = generateMockPrices(m.Prices[symbol], days)
	}
	now := time.Now()
	series := model.PriceSeries{Symbol: symbol, Points: make([]model.PricePoint, len(prices))}
	for i, p := range prices {
		series.Points[i] = model.PricePoint{
			Timestamp: now.AddDate(0, 0, -(len(prices) - i)),
			Price:     p,
		}
	}
	return series, nil
}

func generateMockPrices(basePrice float64, count int) []float64 {
	prices := make([]float64, count)
	for i := 0; i < count; i++ {
		prices[i] = basePrice * (1 + float64(i-count/2)*0.001)
	}
	return prices
}
