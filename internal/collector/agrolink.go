package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/phuslu/log"
	"github.com/shopspring/decimal"

	"QuoteSentinel/internal/model"
)

// AgroLinkProvider implements Provider using the AgroLink commodity REST API.
type AgroLinkProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewAgroLinkProvider creates a provider with optional proxy support.
func NewAgroLinkProvider(baseURL, apiKey, proxyURL string, timeout time.Duration) *AgroLinkProvider {
	return &AgroLinkProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (p *AgroLinkProvider) Name() string { return "agrolink" }

// agroQuote is one record of the /quotes response. Prices arrive either as
// JSON numbers or as decimal strings.
type agroQuote struct {
	Commodity        string              `json:"commodity"`
	Price            decimal.Decimal     `json:"price"`
	PreviousPrice    decimal.NullDecimal `json:"previousPrice"`
	VariationPercent decimal.NullDecimal `json:"variationPercent"`
	LastUpdate       string              `json:"lastUpdate"`
}

type agroQuotes struct {
	Quotes []agroQuote `json:"quotes"`
}

type agroHistory struct {
	History []struct {
		Date  string          `json:"date"`
		Price decimal.Decimal `json:"price"`
	} `json:"history"`
}

func (p *AgroLinkProvider) header() http.Header {
	h := http.Header{}
	if p.APIKey != "" {
		h.Set("Authorization", "Bearer "+p.APIKey)
	}
	return h
}

func (p *AgroLinkProvider) FetchQuotes(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	want := make(map[string]bool, len(symbols))
	for _, s := range model.NormalizeSymbols(symbols) {
		want[s] = true
	}

	var resp agroQuotes
	if err := getJSON(ctx, p.Client, p.BaseURL+"/api/v1/quotes", p.header(), &resp); err != nil {
		return nil, fmt.Errorf("agrolink quotes: %w", err)
	}

	quotes := make(map[string]model.Quote, len(want))
	for _, r := range resp.Quotes {
		c, ok := byCode[r.Commodity]
		if !ok || !want[c.Symbol] {
			continue
		}
		q := p.normalize(c, r)
		if !q.Valid() {
			log.Warn().Str("symbol", c.Symbol).Float64("price", q.Price).Msg("agrolink: dropping invalid quote")
			continue
		}
		quotes[c.Symbol] = q
	}
	return quotes, nil
}

func (p *AgroLinkProvider) normalize(c Commodity, r agroQuote) model.Quote {
	var prev *float64
	if r.PreviousPrice.Valid {
		v := r.PreviousPrice.Decimal.InexactFloat64()
		prev = &v
	}
	var variation float64
	if r.VariationPercent.Valid {
		variation = r.VariationPercent.Decimal.InexactFloat64()
	}
	ts, err := time.Parse(time.RFC3339, r.LastUpdate)
	if err != nil {
		ts = time.Now()
	}
	q := model.NewQuote(c.Symbol, r.Price.InexactFloat64(), prev, variation, c.Unit, p.Name(), ts)
	q.Name = c.Name
	return q
}

func (p *AgroLinkProvider) FetchHistory(ctx context.Context, symbol string, days int) (model.PriceSeries, error) {
	c, ok := LookupCommodity(symbol)
	if !ok {
		return model.PriceSeries{}, fmt.Errorf("agrolink: unknown commodity %q", symbol)
	}
	endpoint := fmt.Sprintf("%s/api/v1/quotes/%s/history?days=%d", p.BaseURL, url.PathEscape(c.Code), days)

	var resp agroHistory
	if err := getJSON(ctx, p.Client, endpoint, p.header(), &resp); err != nil {
		return model.PriceSeries{}, fmt.Errorf("agrolink history: %w", err)
	}

	series := model.PriceSeries{Symbol: c.Symbol, Points: make([]model.PricePoint, 0, len(resp.History))}
	for _, h := range resp.History {
		ts, err := parseDate(h.Date)
		if err != nil {
			continue
		}
		series.Points = append(series.Points, model.PricePoint{Timestamp: ts, Price: h.Price.InexactFloat64()})
	}
	sort.Slice(series.Points, func(i, j int) bool {
		return series.Points[i].Timestamp.Before(series.Points[j].Timestamp)
	})
	return series, nil
}

func parseDate(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Parse(time.DateOnly, s)
}
