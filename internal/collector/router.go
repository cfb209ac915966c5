package collector

import (
	"context"
	"errors"
	"fmt"

	"QuoteSentinel/internal/model"
)

// RouterProvider dispatches symbols to a provider per data class.
type RouterProvider struct {
	Agro   Provider
	Crypto Provider
}

func (r *RouterProvider) Name() string { return "router" }

func (r *RouterProvider) route(symbol string) Provider {
	if ClassOf(symbol) == ClassAgro {
		return r.Agro
	}
	return r.Crypto
}

// FetchQuotes queries each involved provider once. When some providers
// fail, the quotes of the others are returned along with the joined errors.
func (r *RouterProvider) FetchQuotes(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	groups := map[Provider][]string{}
	var order []Provider
	var errs []error
	for _, s := range model.NormalizeSymbols(symbols) {
		p := r.route(s)
		if p == nil {
			errs = append(errs, fmt.Errorf("no provider for %q", s))
			continue
		}
		if _, ok := groups[p]; !ok {
			order = append(order, p)
		}
		groups[p] = append(groups[p], s)
	}

	quotes := map[string]model.Quote{}
	for _, p := range order {
		got, err := p.FetchQuotes(ctx, groups[p])
		if err != nil {
			errs = append(errs, err)
		}
		for s, q := range got {
			quotes[s] = q
		}
	}
	return quotes, errors.Join(errs...)
}

func (r *RouterProvider) FetchHistory(ctx context.Context, symbol string, days int) (model.PriceSeries, error) {
	p := r.route(symbol)
	if p == nil {
		return model.PriceSeries{}, fmt.Errorf("no provider for %q", symbol)
	}
	return p.FetchHistory(ctx, symbol, days)
}
