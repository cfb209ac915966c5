// Package cache holds the freshness-bounded quote cache.
package cache

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"QuoteSentinel/internal/model"
)

// ErrKeyCollision means two different symbol sets mapped to the same key.
// It is an integrity failure and must not be ignored.
var ErrKeyCollision = errors.New("cache key collision")

const keySeparator = ","

// Entry is a cached quote set for one canonical symbol set.
type Entry struct {
	Key       string
	Symbols   []string
	Quotes    map[string]model.Quote
	FetchedAt time.Time
}

// Age returns how old the entry is at now.
func (e *Entry) Age(now time.Time) time.Duration { return now.Sub(e.FetchedAt) }

// QuoteCache caches quote sets keyed by their canonical symbol set.
// Safe for concurrent use.
type QuoteCache struct {
	mu     sync.RWMutex
	items  map[string]*Entry
	ttl    time.Duration
	ttlFor func(symbol string) time.Duration
	now    func() time.Time
}

// Option configures a QuoteCache.
type Option func(*QuoteCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *QuoteCache) { c.now = now }
}

// WithSymbolTTL sets a freshness window per symbol. An entry stays fresh
// for the shortest window among its symbols; a non-positive window falls
// back to the default ttl.
func WithSymbolTTL(ttlFor func(symbol string) time.Duration) Option {
	return func(c *QuoteCache) { c.ttlFor = ttlFor }
}

// New creates a QuoteCache whose entries stay fresh for ttl.
func New(ttl time.Duration, opts ...Option) *QuoteCache {
	c := &QuoteCache{
		items: make(map[string]*Entry),
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the default freshness window.
func (c *QuoteCache) TTL() time.Duration { return c.ttl }

// TTLFor returns the freshness window of the entry for symbols.
func (c *QuoteCache) TTLFor(symbols []string) time.Duration {
	if c.ttlFor == nil {
		return c.ttl
	}
	ttl := time.Duration(0)
	for _, s := range model.NormalizeSymbols(symbols) {
		d := c.ttlFor(s)
		if d <= 0 {
			d = c.ttl
		}
		if ttl == 0 || d < ttl {
			ttl = d
		}
	}
	if ttl == 0 {
		return c.ttl
	}
	return ttl
}

// Key returns the canonical key of a symbol set. It does not depend on
// input order or case.
func Key(symbols []string) string {
	return strings.Join(model.NormalizeSymbols(symbols), keySeparator)
}

// Get returns the entry for symbols only if it exists and is fresh.
func (c *QuoteCache) Get(symbols []string) (*Entry, bool) {
	norm := model.NormalizeSymbols(symbols)
	key := strings.Join(norm, keySeparator)

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || !slices.Equal(e.Symbols, norm) {
		return nil, false
	}
	if e.Age(c.now()) > c.TTLFor(norm) {
		return nil, false
	}
	return e.clone(), true
}

// Stale returns the entry for symbols regardless of age.
func (c *QuoteCache) Stale(symbols []string) (*Entry, bool) {
	norm := model.NormalizeSymbols(symbols)
	key := strings.Join(norm, keySeparator)

	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || !slices.Equal(e.Symbols, norm) {
		return nil, false
	}
	return e.clone(), true
}

// LastKnown returns the most recent cached quote for each requested symbol
// across every entry, fresh or not.
func (c *QuoteCache) LastKnown(symbols []string) map[string]model.Quote {
	want := model.NormalizeSymbols(symbols)
	out := make(map[string]model.Quote, len(want))
	fetched := make(map[string]time.Time, len(want))

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.items {
		for _, s := range want {
			q, ok := e.Quotes[s]
			if !ok {
				continue
			}
			if prev, seen := fetched[s]; seen && !e.FetchedAt.After(prev) {
				continue
			}
			out[s] = q
			fetched[s] = e.FetchedAt
		}
	}
	return out
}

// Put stores quotes for symbols stamped with the current time.
func (c *QuoteCache) Put(symbols []string, quotes map[string]model.Quote) error {
	_, err := c.PutAt(symbols, quotes, c.now())
	return err
}

// PutAt stores quotes for symbols as fetched at fetchedAt. A write older
// than the stored entry is rejected and reported as not stored.
func (c *QuoteCache) PutAt(symbols []string, quotes map[string]model.Quote, fetchedAt time.Time) (bool, error) {
	norm := model.NormalizeSymbols(symbols)
	key := strings.Join(norm, keySeparator)

	stored := make(map[string]model.Quote, len(quotes))
	for s, q := range quotes {
		stored[model.NormalizeSymbol(s)] = q
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.items[key]; ok {
		if !slices.Equal(cur.Symbols, norm) {
			return false, fmt.Errorf("%w: key %q holds %v, write for %v", ErrKeyCollision, key, cur.Symbols, norm)
		}
		if fetchedAt.Before(cur.FetchedAt) {
			return false, nil
		}
	}
	c.items[key] = &Entry{
		Key:       key,
		Symbols:   norm,
		Quotes:    stored,
		FetchedAt: fetchedAt,
	}
	return true, nil
}

// Purge removes entries fetched before olderThan and returns how many
// were dropped.
func (c *QuoteCache) Purge(olderThan time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.items {
		if e.FetchedAt.Before(olderThan) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

// Len returns the number of entries, fresh or stale.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (e *Entry) clone() *Entry {
	quotes := make(map[string]model.Quote, len(e.Quotes))
	for k, v := range e.Quotes {
		quotes[k] = v
	}
	return &Entry{
		Key:       e.Key,
		Symbols:   slices.Clone(e.Symbols),
		Quotes:    quotes,
		FetchedAt: e.FetchedAt,
	}
}
