package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/phuslu/log"

	"QuoteSentinel/internal/model"
)

// LogSink writes alert events to the structured log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Notify(_ context.Context, evt model.AlertEvent) error {
	log.Info().Str("id", evt.Alert.ID).Str("owner", evt.Alert.OwnerID).Str("symbol", evt.Alert.Symbol).
		Str("condition", string(evt.Alert.Condition)).Float64("threshold", evt.Alert.ThresholdPrice).
		Float64("price", evt.Quote.Price).Msg("alert notification")
	return nil
}

// RedisSink publishes alert events as JSON on Redis pub/sub and keeps a
// capped list of recent events.
type RedisSink struct {
	client  *goredis.Client
	channel string
	keep    int64
}

// RedisConfig configures the Redis sink.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	// Keep is how many recent events are retained in the history list.
	Keep int64
}

// NewRedisSink creates a sink and pings the server.
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Msg("redis connected")
	return newRedisSink(client, cfg), nil
}

func newRedisSink(client *goredis.Client, cfg RedisConfig) *RedisSink {
	channel := cfg.Channel
	if channel == "" {
		channel = "quotesentinel:alerts"
	}
	keep := cfg.Keep
	if keep <= 0 {
		keep = 100
	}
	return &RedisSink{client: client, channel: channel, keep: keep}
}

// Client returns the underlying Redis client for health checks.
func (r *RedisSink) Client() *goredis.Client { return r.client }

func (r *RedisSink) Name() string { return "redis" }

// SymbolChannel is the per-symbol channel events are also published on.
func (r *RedisSink) SymbolChannel(symbol string) string {
	return r.channel + ":" + symbol
}

func (r *RedisSink) HistoryKey() string { return r.channel + ":history" }

func (r *RedisSink) Notify(ctx context.Context, evt model.AlertEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pipe := r.client.Pipeline()
	pipe.Publish(ctx, r.channel, payload)
	pipe.Publish(ctx, r.SymbolChannel(evt.Alert.Symbol), payload)
	pipe.LPush(ctx, r.HistoryKey(), payload)
	pipe.LTrim(ctx, r.HistoryKey(), 0, r.keep-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *RedisSink) Close() error { return r.client.Close() }

// MultiSink fans an event out to every sink. All sinks are attempted; the
// errors of those that failed are joined.
type MultiSink []Sink

func (m MultiSink) Name() string { return "multi" }

func (m MultiSink) Notify(ctx context.Context, evt model.AlertEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
