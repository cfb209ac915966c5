// Package bus is the in-process publish/subscribe registry for quote
// updates, keyed by symbol.
package bus

import (
	"fmt"
	"sort"
	"sync"

	"github.com/phuslu/log"

	"QuoteSentinel/internal/model"
)

// Listener receives quote updates for one symbol.
type Listener func(model.Quote)

type subscription struct {
	id       uint64
	listener Listener
}

// Bus fans quote updates out to listeners registered per symbol.
// Publish is synchronous and holds no history.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64

	// OnPanic is called when a listener panics. The remaining listeners
	// still run.
	OnPanic func(symbol string, recovered any)
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers listener for symbol and returns a function that
// removes it. Calling the returned function more than once is a no-op.
func (b *Bus) Subscribe(symbol string, listener Listener) (unsubscribe func()) {
	symbol = model.NormalizeSymbol(symbol)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[symbol] = append(b.subs[symbol], subscription{id: id, listener: listener})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(symbol, id) })
	}
}

func (b *Bus) remove(symbol string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[symbol]
	for i, s := range subs {
		if s.id == id {
			b.subs[symbol] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[symbol]) == 0 {
		delete(b.subs, symbol)
	}
}

// Publish invokes every listener currently registered for symbol, in
// registration order. It returns the number of listeners invoked.
func (b *Bus) Publish(symbol string, quote model.Quote) int {
	symbol = model.NormalizeSymbol(symbol)

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[symbol]))
	copy(subs, b.subs[symbol])
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(symbol, s.listener, quote)
	}
	return len(subs)
}

// PublishAll publishes each quote under its symbol, in symbol order.
func (b *Bus) PublishAll(quotes map[string]model.Quote) int {
	symbols := make([]string, 0, len(quotes))
	for s := range quotes {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	n := 0
	for _, s := range symbols {
		n += b.Publish(s, quotes[s])
	}
	return n
}

// Subscribers returns how many listeners are registered for symbol.
func (b *Bus) Subscribers(symbol string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[model.NormalizeSymbol(symbol)])
}

func (b *Bus) deliver(symbol string, l Listener, q model.Quote) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("symbol", symbol).Str("panic", fmt.Sprint(r)).Msg("bus listener panicked")
			if b.OnPanic != nil {
				b.OnPanic(symbol, r)
			}
		}
	}()
	l(q)
}
