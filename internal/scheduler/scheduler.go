package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"

	"QuoteSentinel/internal/alert"
	"QuoteSentinel/internal/collector"
	"QuoteSentinel/internal/metrics"
	"QuoteSentinel/internal/model"
	"QuoteSentinel/internal/quotes"
)

// QuoteService is the part of quotes.Service the scheduler drives.
type QuoteService interface {
	Get(ctx context.Context, symbols []string) (quotes.Snapshot, error)
	GetFresh(ctx context.Context, symbols []string) (quotes.Snapshot, error)
	Indicators(ctx context.Context, symbol string, days int) model.IndicatorResult
	Purge(maxAge time.Duration) int
}

// Scheduler manages the polling tasks per data class.
type Scheduler struct {
	Cron    *cron.Cron
	Quotes  QuoteService
	Alerts  *alert.Engine
	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus
	Ctx     context.Context

	mu      sync.Mutex
	tasks   map[collector.Class]*Task
	classes []collector.Class
	symbols map[collector.Class][]string
}

// NewScheduler creates a new Scheduler. alerts may be nil.
func NewScheduler(ctx context.Context, svc QuoteService, alerts *alert.Engine) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds(), cron.WithLogger(cronLogger{})),
		Quotes:  svc,
		Alerts:  alerts,
		Ctx:     ctx,
		tasks:   make(map[collector.Class]*Task),
		symbols: make(map[collector.Class][]string),
	}
}

// AddRefreshTask registers a polling task refreshing symbols of class on
// the cron schedule. Symbols with alerts of the same class are refreshed too.
func (s *Scheduler) AddRefreshTask(class collector.Class, spec string, symbols []string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[class]; ok {
		return nil, fmt.Errorf("refresh task for %s already registered", class)
	}
	t := newTask(s.Ctx, s.Cron, string(class), func(ctx context.Context) { s.refreshCycle(ctx, class) })
	if err := t.schedule(spec); err != nil {
		return nil, fmt.Errorf("register %s refresh: %w", class, err)
	}
	s.tasks[class] = t
	s.classes = append(s.classes, class)
	s.symbols[class] = model.NormalizeSymbols(symbols)
	return t, nil
}

// AddPurgeTask registers periodic removal of cache entries older than maxAge.
func (s *Scheduler) AddPurgeTask(spec string, maxAge time.Duration) (*Task, error) {
	t := newTask(s.Ctx, s.Cron, "purge", func(context.Context) {
		if n := s.Quotes.Purge(maxAge); n > 0 {
			log.Info().Int("entries", n).Msg("purged stale cache entries")
		}
	})
	if err := t.schedule(spec); err != nil {
		return nil, fmt.Errorf("register purge: %w", err)
	}
	return t, nil
}

// Task returns the refresh task of class.
func (s *Scheduler) Task(class collector.Class) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[class]
	return t, ok
}

// Symbols returns the symbols refreshed for class: configured ones plus
// those referenced by alerts.
func (s *Scheduler) Symbols(class collector.Class) []string {
	s.mu.Lock()
	symbols := append([]string(nil), s.symbols[class]...)
	s.mu.Unlock()

	if s.Alerts != nil {
		for _, sym := range s.Alerts.Symbols() {
			if collector.ClassOf(sym) == class {
				symbols = append(symbols, sym)
			}
		}
	}
	return model.NormalizeSymbols(symbols)
}

// AllSymbols returns the symbols of every registered class.
func (s *Scheduler) AllSymbols() []string {
	s.mu.Lock()
	classes := append([]collector.Class(nil), s.classes...)
	s.mu.Unlock()

	var all []string
	for _, c := range classes {
		all = append(all, s.Symbols(c)...)
	}
	return model.NormalizeSymbols(all)
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("entries", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops every task and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()
	for _, t := range tasks {
		t.Stop()
	}
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunNow executes every refresh task immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.mu.Lock()
	classes := append([]collector.Class(nil), s.classes...)
	s.mu.Unlock()
	for _, c := range classes {
		if t, ok := s.Task(c); ok {
			t.Run()
		}
	}
}

func (s *Scheduler) refreshCycle(ctx context.Context, class collector.Class) {
	symbols := s.Symbols(class)
	if len(symbols) == 0 {
		return
	}
	start := time.Now()
	snap, err := s.Quotes.GetFresh(ctx, symbols)
	if err != nil {
		log.Error().Err(err).Str("class", string(class)).Msg("refresh failed")
		return
	}
	if !snap.Success {
		log.Warn().Str("class", string(class)).Str("source", snap.Source).Int("quotes", len(snap.Quotes)).Msg("refresh served fallback data")
		return
	}
	s.Metrics.Refreshed(string(class), float64(snap.FetchedAt.Unix()))
	if s.Health != nil {
		s.Health.SetLastRefresh(snap.FetchedAt)
	}
	log.Info().Str("class", string(class)).Int("quotes", len(snap.Quotes)).Dur("took", time.Since(start)).Msg("refresh completed")
}

// Task is a cancellable periodic job.
type Task struct {
	name string
	cron *cron.Cron
	run  func(ctx context.Context)

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	id      cron.EntryID
	stopped bool
	running sync.Mutex
}

func newTask(parent context.Context, c *cron.Cron, name string, run func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(parent)
	return &Task{name: name, cron: c, run: run, ctx: ctx, cancel: cancel}
}

func (t *Task) schedule(spec string) error {
	job := cron.NewChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})).Then(cron.FuncJob(t.Run))
	id, err := t.cron.AddJob(spec, job)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.id = id
	t.mu.Unlock()
	return nil
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Run executes one cycle now unless the task is stopped. Cycles of the same
// task never overlap.
func (t *Task) Run() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	ctx := t.ctx
	t.mu.Unlock()

	t.running.Lock()
	defer t.running.Unlock()
	if ctx.Err() != nil {
		return
	}
	t.run(ctx)
}

// Stop cancels an in-flight cycle and removes the task from cron. Calling
// Stop more than once is a no-op.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.cancel()
	t.cron.Remove(t.id)
	log.Info().Str("task", t.name).Msg("task stopped")
}

// Stopped reports whether Stop was called.
func (t *Task) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// cronLogger adapts cron's logger onto the structured logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	e := log.Debug()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		e = e.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1])
	}
	e.Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	e := log.Error().Err(err)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		e = e.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1])
	}
	e.Msg("cron: " + msg)
}
