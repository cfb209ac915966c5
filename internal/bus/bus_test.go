package bus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"QuoteSentinel/internal/model"
)

func TestPublish_RegistrationOrder(t *testing.T) {
	b := New()
	var calls []string
	b.Subscribe("soja", func(model.Quote) { calls = append(calls, "first") })
	b.Subscribe("SOJA", func(model.Quote) { calls = append(calls, "second") })
	b.Subscribe("milho", func(model.Quote) { calls = append(calls, "other") })

	n := b.Publish("soja", model.Quote{Symbol: "soja", Price: 120})
	require.Equal(t, 2, n)
	require.Equal(t, []string{"first", "second"}, calls)
}

func TestPublish_ListenerPanicIsolated(t *testing.T) {
	b := New()
	var panicked []string
	b.OnPanic = func(symbol string, _ any) { panicked = append(panicked, symbol) }

	var got []float64
	b.Subscribe("bitcoin", func(model.Quote) { panic("boom") })
	b.Subscribe("bitcoin", func(q model.Quote) { got = append(got, q.Price) })

	require.NotPanics(t, func() {
		b.Publish("bitcoin", model.Quote{Symbol: "bitcoin", Price: 42})
	})
	require.Equal(t, []float64{42}, got)
	require.Equal(t, []string{"bitcoin"}, panicked)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	b := New()
	var a, c int
	unsubA := b.Subscribe("soja", func(model.Quote) { a++ })
	b.Subscribe("soja", func(model.Quote) { c++ })

	unsubA()
	unsubA()
	require.Equal(t, 1, b.Subscribers("soja"))

	b.Publish("soja", model.Quote{Symbol: "soja"})
	require.Zero(t, a)
	require.Equal(t, 1, c)
}

func TestSubscribe_NoHistory(t *testing.T) {
	b := New()
	b.Publish("soja", model.Quote{Symbol: "soja", Price: 1})

	var got int
	b.Subscribe("soja", func(model.Quote) { got++ })
	require.Zero(t, got)

	require.Zero(t, b.Publish("cafe", model.Quote{Symbol: "cafe"}))
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	b := New()
	var second int
	var unsub func()
	unsub = b.Subscribe("soja", func(model.Quote) { unsub() })
	b.Subscribe("soja", func(model.Quote) { second++ })

	b.Publish("soja", model.Quote{Symbol: "soja"})
	require.Equal(t, 1, second, "listeners registered at publish time all run")
	require.Equal(t, 1, b.Subscribers("soja"))
}

func TestPublishAll(t *testing.T) {
	b := New()
	var order []string
	for _, s := range []string{"soja", "milho", "cafe"} {
		b.Subscribe(s, func(q model.Quote) { order = append(order, q.Symbol) })
	}
	n := b.PublishAll(map[string]model.Quote{
		"soja":  {Symbol: "soja"},
		"milho": {Symbol: "milho"},
		"cafe":  {Symbol: "cafe"},
	})
	require.Equal(t, 3, n)
	require.Equal(t, []string{"cafe", "milho", "soja"}, order)
}
