package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewQuote_DerivesVariation(t *testing.T) {
	prev := 100.0
	q := NewQuote(" SOJA ", 110, &prev, 99, "saca 60kg", "AgroLink", time.Now())
	require.Equal(t, "soja", q.Symbol)
	require.InDelta(t, 10.0, q.VariationPercent, 1e-9)
	require.NotNil(t, q.PreviousPrice)

	prev = 1
	require.Equal(t, 100.0, *q.PreviousPrice, "quote keeps its own copy of the previous price")
}

func TestNewQuote_ProviderVariationWithoutPrevious(t *testing.T) {
	q := NewQuote("bitcoin", 50000, nil, -2.5, "USD", "coingecko", time.Now())
	require.Nil(t, q.PreviousPrice)
	require.Equal(t, -2.5, q.VariationPercent)
}

func TestQuoteValid(t *testing.T) {
	require.True(t, Quote{Symbol: "milho", Price: 0}.Valid())
	require.False(t, Quote{Symbol: "milho", Price: -1}.Valid())
	require.False(t, Quote{Symbol: "milho", Price: math.NaN()}.Valid())
	require.False(t, Quote{Price: 1}.Valid())
}

func TestNormalizeSymbols(t *testing.T) {
	got := NormalizeSymbols([]string{"Soja", "milho", " soja", "", "cafe"})
	require.Equal(t, []string{"cafe", "milho", "soja"}, got)
}

func TestParseCondition(t *testing.T) {
	c, err := ParseCondition("Above")
	require.NoError(t, err)
	require.Equal(t, ConditionAbove, c)

	c, err = ParseCondition("below")
	require.NoError(t, err)
	require.Equal(t, ConditionBelow, c)

	_, err = ParseCondition("sideways")
	require.Error(t, err)
}

func TestConditionReached(t *testing.T) {
	tests := []struct {
		cond      Condition
		price     float64
		threshold float64
		want      bool
	}{
		{ConditionAbove, 120, 115, true},
		{ConditionAbove, 115, 115, true},
		{ConditionAbove, 114.99, 115, false},
		{ConditionBelow, 80, 85, true},
		{ConditionBelow, 85, 85, true},
		{ConditionBelow, 85.01, 85, false},
		{Condition("other"), 1, 1, false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.cond.Reached(tt.price, tt.threshold), "%s %v vs %v", tt.cond, tt.price, tt.threshold)
	}
}
