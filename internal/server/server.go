// Package server exposes quotes, indicators and alerts over HTTP and
// streams quote updates over WebSocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"QuoteSentinel/internal/alert"
	"QuoteSentinel/internal/bus"
	"QuoteSentinel/internal/metrics"
	"QuoteSentinel/internal/model"
	"QuoteSentinel/internal/quotes"
)

// QuoteService is the part of quotes.Service the API serves.
type QuoteService interface {
	Get(ctx context.Context, symbols []string) (quotes.Snapshot, error)
	GetFresh(ctx context.Context, symbols []string) (quotes.Snapshot, error)
	History(ctx context.Context, symbol string, days int) model.PriceSeries
	Indicators(ctx context.Context, symbol string, days int) model.IndicatorResult
}

// Config wires the server to the rest of the application. Alerts, Health,
// Metrics and Gatherer are optional.
type Config struct {
	Quotes         QuoteService
	Alerts         *alert.Engine
	Bus            *bus.Bus
	Health         *metrics.HealthStatus
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	DefaultSymbols func() []string
}

// Server is the HTTP API.
type Server struct {
	cfg    Config
	router *gin.Engine
}

// New builds the router.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg, router: gin.New()}
	s.router.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router
	r.GET("/healthz", s.health)
	if s.cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/ws", s.stream)

	api := r.Group("/api")
	{
		api.GET("/quotes", s.getQuotes)
		api.GET("/history/:symbol", s.getHistory)
		api.GET("/indicators/:symbol", s.getIndicators)

		alerts := api.Group("/alerts")
		{
			alerts.GET("", s.listAlerts)
			alerts.POST("", s.createAlert)
			alerts.GET("/:id", s.getAlert)
			alerts.POST("/:id/toggle", s.toggleAlert)
			alerts.DELETE("/:id", s.deleteAlert)
		}
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("http server stopped")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		e := log.Debug()
		if status >= http.StatusInternalServerError {
			e = log.Warn()
		}
		e.Str("method", c.Request.Method).Str("path", c.Request.URL.Path).
			Int("status", status).Dur("took", time.Since(start)).Msg("http request")
	}
}
