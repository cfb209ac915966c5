package collector

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"QuoteSentinel/internal/model"
)

const coinGeckoBaseURL = "https://api.coingecko.com"

// CoinGeckoProvider implements Provider using the CoinGecko public API.
type CoinGeckoProvider struct {
	BaseURL  string
	Currency string
	Client   *http.Client
	// SymbolMap maps ticker aliases to CoinGecko coin ids.
	SymbolMap map[string]string
}

// NewCoinGeckoProvider creates a CoinGecko provider.
func NewCoinGeckoProvider(baseURL, proxyURL string, timeout time.Duration) *CoinGeckoProvider {
	if baseURL == "" {
		baseURL = coinGeckoBaseURL
	}
	return &CoinGeckoProvider{
		BaseURL:  baseURL,
		Currency: "usd",
		Client:   newHTTPClient(proxyURL, timeout),
		SymbolMap: map[string]string{
			"btc": "bitcoin",
			"eth": "ethereum",
			"sol": "solana",
			"ada": "cardano",
		},
	}
}

func (p *CoinGeckoProvider) Name() string { return "coingecko" }

func (p *CoinGeckoProvider) coinID(symbol string) string {
	if id, ok := p.SymbolMap[symbol]; ok {
		return id
	}
	return symbol
}

func (p *CoinGeckoProvider) FetchQuotes(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	symbols = model.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return map[string]model.Quote{}, nil
	}
	// several symbols may alias one coin id
	ids := make([]string, 0, len(symbols))
	coinOf := make(map[string]string, len(symbols))
	seen := map[string]bool{}
	for _, s := range symbols {
		id := p.coinID(s)
		coinOf[s] = id
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", p.Currency)
	query.Set("include_24hr_change", "true")
	endpoint := fmt.Sprintf("%s/api/v3/simple/price?%s", p.BaseURL, query.Encode())

	var resp map[string]map[string]decimal.Decimal
	if err := getJSON(ctx, p.Client, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("coingecko price: %w", err)
	}

	now := time.Now()
	quotes := make(map[string]model.Quote, len(symbols))
	for _, s := range symbols {
		coin, ok := resp[coinOf[s]]
		if !ok {
			continue
		}
		price, ok := coin[p.Currency]
		if !ok || price.IsNegative() {
			continue
		}
		change := coin[p.Currency+"_24h_change"]
		q := model.NewQuote(s, price.InexactFloat64(), nil, change.InexactFloat64(), strings.ToUpper(p.Currency), p.Name(), now)
		quotes[s] = q
	}
	return quotes, nil
}

type marketChart struct {
	Prices [][2]float64 `json:"prices"`
}

func (p *CoinGeckoProvider) FetchHistory(ctx context.Context, symbol string, days int) (model.PriceSeries, error) {
	symbol = model.NormalizeSymbol(symbol)
	query := url.Values{}
	query.Set("vs_currency", p.Currency)
	query.Set("days", strconv.Itoa(days))
	endpoint := fmt.Sprintf("%s/api/v3/coins/%s/market_chart?%s",
		p.BaseURL, url.PathEscape(p.coinID(symbol)), query.Encode())

	var chart marketChart
	if err := getJSON(ctx, p.Client, endpoint, nil, &chart); err != nil {
		return model.PriceSeries{}, fmt.Errorf("coingecko market chart: %w", err)
	}

	series := model.PriceSeries{Symbol: symbol, Points: make([]model.PricePoint, 0, len(chart.Prices))}
	for _, pt := range chart.Prices {
		if math.IsNaN(pt[1]) || math.IsInf(pt[1], 0) {
			continue
		}
		series.Points = append(series.Points, model.PricePoint{
			Timestamp: time.UnixMilli(int64(pt[0])),
			Price:     pt[1],
		})
	}
	sort.Slice(series.Points, func(i, j int) bool {
		return series.Points[i].Timestamp.Before(series.Points[j].Timestamp)
	})
	return series, nil
}
