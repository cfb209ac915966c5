// Package alert manages user price alerts and evaluates them against
// incoming quotes.
package alert

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"QuoteSentinel/internal/bus"
	"QuoteSentinel/internal/metrics"
	"QuoteSentinel/internal/model"
	"QuoteSentinel/internal/notifier"
)

// Engine owns the set of alerts. Local state is authoritative; the Store
// mirrors it.
type Engine struct {
	mu     sync.Mutex
	alerts map[string]*model.Alert
	order  []string

	store   Store
	sink    notifier.Sink
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string

	busMu      sync.Mutex
	bus        *bus.Bus
	subscribed map[string]func()

	// Notifications are delivered off the publishing goroutine by a
	// single worker bound to the engine lifetime.
	life          context.Context
	stop          context.CancelFunc
	queueMu       sync.Mutex
	queue         chan model.AlertEvent
	queueSize     int
	closed        bool
	notifyTimeout time.Duration
	done          chan struct{}
}

const (
	defaultQueueSize     = 256
	defaultNotifyTimeout = 30 * time.Second
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides alert id generation.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithMetrics records trigger and store failure metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithNotifyTimeout bounds each sink delivery.
func WithNotifyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.notifyTimeout = d
		}
	}
}

// WithQueueSize sets how many undelivered events may wait for the sink.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// NewEngine creates an empty engine. sink may be nil. When a sink is set
// the engine runs a delivery worker until Close.
func NewEngine(store Store, sink notifier.Sink, opts ...Option) *Engine {
	e := &Engine{
		alerts:        make(map[string]*model.Alert),
		store:         store,
		sink:          sink,
		now:           time.Now,
		newID:         uuid.NewString,
		subscribed:    make(map[string]func()),
		queueSize:     defaultQueueSize,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.life, e.stop = context.WithCancel(context.Background())
	if e.sink != nil {
		e.queue = make(chan model.AlertEvent, e.queueSize)
		e.done = make(chan struct{})
		go e.deliverLoop()
	}
	return e
}

// Hydrate replaces local state with the alerts held by the store.
func (e *Engine) Hydrate(ctx context.Context) error {
	stored, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].CreatedAt.Before(stored[j].CreatedAt) })

	e.mu.Lock()
	e.alerts = make(map[string]*model.Alert, len(stored))
	e.order = e.order[:0]
	for i := range stored {
		a := stored[i]
		e.alerts[a.ID] = &a
		e.order = append(e.order, a.ID)
	}
	e.mu.Unlock()

	e.watchSymbols(e.Symbols()...)
	log.Info().Int("alerts", len(stored)).Msg("alerts loaded")
	return nil
}

// Create validates input and registers a new enabled alert.
func (e *Engine) Create(ctx context.Context, ownerID, symbol, condition string, threshold float64, description string) (model.Alert, error) {
	ownerID = strings.TrimSpace(ownerID)
	symbol = model.NormalizeSymbol(symbol)
	if ownerID == "" {
		return model.Alert{}, ErrInvalidOwner
	}
	if symbol == "" {
		return model.Alert{}, ErrInvalidSymbol
	}
	cond, err := model.ParseCondition(condition)
	if err != nil {
		return model.Alert{}, fmt.Errorf("%w: %q", ErrUnknownCondition, condition)
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 {
		return model.Alert{}, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}

	a := model.Alert{
		ID:             e.newID(),
		OwnerID:        ownerID,
		Symbol:         symbol,
		Condition:      cond,
		ThresholdPrice: threshold,
		Description:    strings.TrimSpace(description),
		Enabled:        true,
		CreatedAt:      e.now(),
	}

	e.mu.Lock()
	e.alerts[a.ID] = &a
	e.order = append(e.order, a.ID)
	if err := e.store.Create(ctx, a); err != nil {
		delete(e.alerts, a.ID)
		e.order = e.order[:len(e.order)-1]
		e.mu.Unlock()
		e.metrics.StoreFailed("create")
		return model.Alert{}, fmt.Errorf("persist alert: %w", err)
	}
	e.mu.Unlock()

	e.watchSymbols(symbol)
	log.Info().Str("id", a.ID).Str("owner", ownerID).Str("symbol", symbol).
		Str("condition", string(cond)).Float64("threshold", threshold).Msg("alert created")
	return a, nil
}

// Get returns a copy of the alert with id.
func (e *Engine) Get(id string) (model.Alert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.alerts[id]
	if !ok {
		return model.Alert{}, ErrNotFound
	}
	return *a, nil
}

// List returns the alerts of ownerID in creation order; an empty owner
// lists every alert.
func (e *Engine) List(ownerID string) []model.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Alert, 0, len(e.order))
	for _, id := range e.order {
		a := e.alerts[id]
		if ownerID == "" || a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	return out
}

// Symbols returns the distinct symbols alerts are registered for.
func (e *Engine) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	symbols := make([]string, 0, len(e.alerts))
	for _, a := range e.alerts {
		symbols = append(symbols, a.Symbol)
	}
	return model.NormalizeSymbols(symbols)
}

// ToggleEnabled flips the enabled flag and returns the updated alert.
// Triggered alerts stay triggered.
func (e *Engine) ToggleEnabled(ctx context.Context, id string) (model.Alert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.alerts[id]
	if !ok {
		return model.Alert{}, ErrNotFound
	}
	a.Enabled = !a.Enabled
	if err := e.store.SetEnabled(ctx, id, a.Enabled); err != nil {
		a.Enabled = !a.Enabled
		e.metrics.StoreFailed("set_enabled")
		return model.Alert{}, fmt.Errorf("persist toggle: %w", err)
	}
	return *a, nil
}

// Delete removes the alert permanently.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.alerts[id]
	if !ok {
		return ErrNotFound
	}
	idx := -1
	for i, oid := range e.order {
		if oid == id {
			idx = i
			break
		}
	}
	delete(e.alerts, id)
	e.order = append(e.order[:idx:idx], e.order[idx+1:]...)

	if err := e.store.Delete(ctx, id); err != nil {
		e.alerts[id] = a
		e.order = append(e.order[:idx], append([]string{id}, e.order[idx:]...)...)
		e.metrics.StoreFailed("delete")
		return fmt.Errorf("persist delete: %w", err)
	}
	log.Info().Str("id", id).Msg("alert deleted")
	return nil
}

// Evaluate checks every pending alert against latest, in creation order.
// Each alert that reaches its threshold is marked triggered and yields
// exactly one event, queued for the sink. Evaluate never waits on the sink.
func (e *Engine) Evaluate(ctx context.Context, latest map[string]model.Quote) []model.AlertEvent {
	if len(latest) == 0 {
		return nil
	}
	now := e.now()

	e.mu.Lock()
	var events []model.AlertEvent
	for _, id := range e.order {
		a := e.alerts[id]
		if !a.Pending() {
			continue
		}
		q, ok := latest[a.Symbol]
		if !ok || !a.Condition.Reached(q.Price, a.ThresholdPrice) {
			continue
		}
		at := now
		a.Triggered = true
		a.TriggeredAt = &at
		events = append(events, model.AlertEvent{Alert: *a, Quote: q, TriggeredAt: at})
	}
	e.mu.Unlock()

	for _, evt := range events {
		e.dispatch(ctx, evt)
	}
	return events
}

func (e *Engine) dispatch(ctx context.Context, evt model.AlertEvent) {
	a := evt.Alert
	log.Info().Str("id", a.ID).Str("symbol", a.Symbol).Str("condition", string(a.Condition)).
		Float64("threshold", a.ThresholdPrice).Float64("price", evt.Quote.Price).Msg("alert triggered")
	e.metrics.AlertTriggered(string(a.Condition))

	if err := e.store.MarkTriggered(ctx, a.ID, evt.TriggeredAt); err != nil {
		e.metrics.StoreFailed("mark_triggered")
		log.Error().Err(err).Str("id", a.ID).Msg("persist trigger failed")
	}
	e.enqueue(evt)
}

func (e *Engine) enqueue(evt model.AlertEvent) {
	if e.sink == nil {
		return
	}
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	if e.closed {
		log.Warn().Str("id", evt.Alert.ID).Msg("engine closed, notification dropped")
		return
	}
	select {
	case e.queue <- evt:
	default:
		e.metrics.NotifyFailed(e.sink.Name())
		log.Error().Str("id", evt.Alert.ID).Int("queued", len(e.queue)).Msg("notification queue full, event dropped")
	}
}

func (e *Engine) deliverLoop() {
	defer close(e.done)
	for evt := range e.queue {
		e.deliver(evt)
	}
}

func (e *Engine) deliver(evt model.AlertEvent) {
	if e.life.Err() != nil {
		log.Warn().Str("id", evt.Alert.ID).Msg("engine stopped, notification dropped")
		return
	}
	ctx, cancel := context.WithTimeout(e.life, e.notifyTimeout)
	defer cancel()
	if err := e.sink.Notify(ctx, evt); err != nil {
		e.metrics.NotifyFailed(e.sink.Name())
		log.Error().Err(err).Str("id", evt.Alert.ID).Str("sink", e.sink.Name()).Msg("alert notification failed")
	}
}

// Close detaches the engine from the bus and stops accepting events. It
// waits for queued notifications to be delivered until ctx is done, then
// cancels whatever delivery is still in flight.
func (e *Engine) Close(ctx context.Context) error {
	e.Detach()

	e.queueMu.Lock()
	if !e.closed {
		e.closed = true
		if e.queue != nil {
			close(e.queue)
		}
	}
	e.queueMu.Unlock()

	defer e.stop()
	if e.done == nil {
		return nil
	}
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		e.stop()
		<-e.done
		return ctx.Err()
	}
}

// OnQuote evaluates alerts against a single quote. It is the bus listener
// and runs under the engine lifetime.
func (e *Engine) OnQuote(q model.Quote) {
	e.Evaluate(e.life, map[string]model.Quote{q.Symbol: q})
}

// Attach subscribes the engine to b for every alert symbol, now and as
// alerts are created.
func (e *Engine) Attach(b *bus.Bus) {
	e.busMu.Lock()
	e.bus = b
	e.busMu.Unlock()
	e.watchSymbols(e.Symbols()...)
}

// Detach removes every bus subscription.
func (e *Engine) Detach() {
	e.busMu.Lock()
	defer e.busMu.Unlock()
	for s, unsubscribe := range e.subscribed {
		unsubscribe()
		delete(e.subscribed, s)
	}
	e.bus = nil
}

func (e *Engine) watchSymbols(symbols ...string) {
	e.busMu.Lock()
	defer e.busMu.Unlock()
	if e.bus == nil {
		return
	}
	for _, s := range symbols {
		if _, ok := e.subscribed[s]; ok {
			continue
		}
		e.subscribed[s] = e.bus.Subscribe(s, e.OnQuote)
	}
}
