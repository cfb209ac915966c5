package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"QuoteSentinel/internal/alert"
	"QuoteSentinel/internal/bus"
	"QuoteSentinel/internal/cache"
	"QuoteSentinel/internal/collector"
	"QuoteSentinel/internal/config"
	"QuoteSentinel/internal/metrics"
	"QuoteSentinel/internal/notifier"
	"QuoteSentinel/internal/quotes"
	"QuoteSentinel/internal/scheduler"
	"QuoteSentinel/internal/server"
	"QuoteSentinel/internal/store"
)

func main() {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	setupLogging(cfg)
	log.Info().Str("config", cfgPath).Msg("QuoteSentinel starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()

	// Providers
	provider := newProvider(cfg)
	log.Info().Str("provider", provider.Name()).Msg("data source ready")

	// Cache and bus
	quoteCache := cache.New(cfg.Cache.CryptoTTL, cache.WithSymbolTTL(func(symbol string) time.Duration {
		if collector.ClassOf(symbol) == collector.ClassAgro {
			return cfg.Cache.AgroTTL
		}
		return cfg.Cache.CryptoTTL
	}))
	quoteBus := bus.New()
	quoteBus.OnPanic = func(symbol string, recovered any) {
		m.ListenerPanicked()
		log.Error().Str("symbol", symbol).Any("panic", recovered).Msg("quote listener panicked")
	}

	// Persistence
	alertStore, recorder, db := openStore(cfg)
	defer recorder.Close()

	// Sinks
	sinks := notifier.MultiSink{notifier.LogSink{}}
	var tg *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tg = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sinks = append(sinks, tg)
	}
	var rdb *goredis.Client
	if cfg.RedisEnabled() {
		rs, err := notifier.NewRedisSink(notifier.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis sink disabled")
		} else {
			sinks = append(sinks, rs)
			rdb = rs.Client()
			defer rs.Close()
		}
	}

	// Alerts
	engine := alert.NewEngine(alertStore, sinks, alert.WithMetrics(m))
	if err := engine.Hydrate(ctx); err != nil {
		log.Error().Err(err).Msg("load alerts failed, starting empty")
	}
	engine.Attach(quoteBus)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := engine.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("pending alert notifications abandoned")
		}
	}()

	// Quotes
	fetcher := collector.NewQuoteFetcher(provider, quoteCache, m)
	svc := quotes.NewService(fetcher, collector.NewCollector(fetcher), quoteCache, quoteBus,
		quotes.WithMetrics(m), quotes.WithRecorder(recorder))

	// Scheduler
	sched := scheduler.NewScheduler(ctx, svc, engine)
	sched.Metrics = m
	sched.Health = health
	if _, err := sched.AddRefreshTask(collector.ClassAgro, cfg.Schedule.AgroCron, cfg.Symbols.Agro); err != nil {
		log.Fatal().Err(err).Msg("register agro refresh")
	}
	if _, err := sched.AddRefreshTask(collector.ClassCrypto, cfg.Schedule.CryptoCron, cfg.Symbols.Crypto); err != nil {
		log.Fatal().Err(err).Msg("register crypto refresh")
	}
	if _, err := sched.AddPurgeTask(cfg.Schedule.PurgeCron, cfg.Cache.MaxAge); err != nil {
		log.Fatal().Err(err).Msg("register cache purge")
	}
	sched.Start()
	defer sched.Stop()

	health.StartLivenessChecker(ctx, rdb, db, 30*time.Second)

	if tg != nil && cfg.Telegram.Polling {
		go tg.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, refreshing now")
		go sched.RunNow()
	}

	srv := server.New(server.Config{
		Quotes:         svc,
		Alerts:         engine,
		Bus:            quoteBus,
		Health:         health,
		Metrics:        m,
		Gatherer:       reg,
		DefaultSymbols: sched.AllSymbols,
	})
	if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
		log.Error().Err(err).Msg("http server failed")
		cancel()
	}
	log.Info().Msg("QuoteSentinel stopped")
}

func setupLogging(cfg *config.Config) {
	logger := log.Logger{
		Level:      log.ParseLevel(cfg.Logging.Level),
		Caller:     1,
		TimeFormat: "2006-01-02 15:04:05",
		Writer:     &log.ConsoleWriter{ColorOutput: true},
	}
	if cfg.Logging.JSON {
		logger.TimeFormat = ""
		logger.Writer = &log.IOWriter{Writer: os.Stderr}
	}
	log.DefaultLogger = logger
}

func newProvider(cfg *config.Config) collector.Provider {
	if os.Getenv("MOCK_PROVIDER") == "true" {
		mock := &collector.MockProvider{Prices: map[string]float64{}}
		for _, c := range collector.Commodities() {
			if c.BasePrice > 0 {
				mock.SetPrice(c.Symbol, c.BasePrice)
			}
		}
		mock.SetPrice("bitcoin", 64000)
		mock.SetPrice("ethereum", 3100)
		return mock
	}

	router := &collector.RouterProvider{
		Crypto: collector.NewCoinGeckoProvider(cfg.CoinGecko.BaseURL, cfg.Proxy, cfg.HTTP.Timeout),
	}
	if cfg.AgroLink.BaseURL != "" {
		router.Agro = collector.NewAgroLinkProvider(cfg.AgroLink.BaseURL, cfg.AgroLink.APIKey, cfg.Proxy, cfg.HTTP.Timeout)
	} else {
		log.Warn().Msg("agrolink not configured, agro quotes use the reference table")
	}
	return router
}

// openStore returns the alert store, the quote recorder and, when SQLite
// backs either, its handle for health checks.
func openStore(cfg *config.Config) (alert.Store, store.QuoteRecorder, *sql.DB) {
	var sqlite *store.SQLiteStore
	if cfg.Database.SQLitePath != "" {
		s, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Database.SQLitePath).Msg("init sqlite store failed, using noop")
		} else {
			sqlite = s
		}
	}

	var recorder store.QuoteRecorder = store.NewNoopStore()
	var db *sql.DB
	if sqlite != nil {
		recorder = sqlite
		db = sqlite.DB()
	}

	switch cfg.Store.Backend {
	case config.StoreSQLite:
		if sqlite != nil {
			return sqlite, recorder, db
		}
	case config.StoreFile:
		fs, err := store.NewFileStore(cfg.Store.FilePath)
		if err == nil {
			return fs, recorder, db
		}
		log.Warn().Err(err).Str("path", cfg.Store.FilePath).Msg("init file store failed, alerts kept in memory")
	}
	return store.NewNoopStore(), recorder, db
}
