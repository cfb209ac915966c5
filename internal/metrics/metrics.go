package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics for the quote service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchTotal       *prometheus.CounterVec // labels: provider, outcome
	FetchDuration    *prometheus.HistogramVec
	FallbackQuotes   *prometheus.CounterVec // labels: source
	CacheLookups     *prometheus.CounterVec // labels: result=hit|miss
	CacheRejected    prometheus.Counter
	CacheEntries     prometheus.Gauge
	BusPublishes     prometheus.Counter
	BusPanics        prometheus.Counter
	AlertsTriggered  *prometheus.CounterVec // labels: condition
	NotifyFailures   *prometheus.CounterVec // labels: sink
	StoreErrors      *prometheus.CounterVec // labels: op
	WSClients        prometheus.Gauge
	LastRefreshEpoch *prometheus.GaugeVec // labels: class
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotesentinel_fetch_total",
			Help: "Upstream quote fetches by provider and outcome",
		}, []string{"provider", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quotesentinel_fetch_duration_seconds",
			Help:    "Upstream quote fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		FallbackQuotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotesentinel_fallback_quotes_total",
			Help: "Quotes served from stale cache or the reference table",
		}, []string{"source"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotesentinel_cache_lookups_total",
			Help: "Quote cache lookups by result",
		}, []string{"result"}),
		CacheRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotesentinel_cache_rejected_writes_total",
			Help: "Cache writes rejected because a newer entry was stored",
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quotesentinel_cache_entries",
			Help: "Entries held in the quote cache",
		}),
		BusPublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotesentinel_bus_deliveries_total",
			Help: "Quote updates delivered to bus listeners",
		}),
		BusPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotesentinel_bus_listener_panics_total",
			Help: "Bus listeners that panicked",
		}),
		AlertsTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotesentinel_alerts_triggered_total",
			Help: "Alerts that transitioned to triggered",
		}, []string{"condition"}),
		NotifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotesentinel_notify_failures_total",
			Help: "Alert notifications that failed per sink",
		}, []string{"sink"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotesentinel_store_errors_total",
			Help: "Alert store write failures by operation",
		}, []string{"op"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quotesentinel_ws_clients",
			Help: "Connected WebSocket quote stream clients",
		}),
		LastRefreshEpoch: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "quotesentinel_last_refresh_timestamp_seconds",
			Help: "Unix time of the last successful refresh per data class",
		}, []string{"class"}),
	}

	reg.MustRegister(
		m.FetchTotal,
		m.FetchDuration,
		m.FallbackQuotes,
		m.CacheLookups,
		m.CacheRejected,
		m.CacheEntries,
		m.BusPublishes,
		m.BusPanics,
		m.AlertsTriggered,
		m.NotifyFailures,
		m.StoreErrors,
		m.WSClients,
		m.LastRefreshEpoch,
	)
	return m
}

func (m *Metrics) ObserveFetch(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(provider, outcome).Inc()
	m.FetchDuration.WithLabelValues(provider).Observe(seconds)
}

func (m *Metrics) AddFallback(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FallbackQuotes.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) CacheWriteRejected() {
	if m == nil {
		return
	}
	m.CacheRejected.Inc()
}

func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

func (m *Metrics) Delivered(n int) {
	if m == nil {
		return
	}
	m.BusPublishes.Add(float64(n))
}

func (m *Metrics) ListenerPanicked() {
	if m == nil {
		return
	}
	m.BusPanics.Inc()
}

func (m *Metrics) AlertTriggered(condition string) {
	if m == nil {
		return
	}
	m.AlertsTriggered.WithLabelValues(condition).Inc()
}

func (m *Metrics) NotifyFailed(sink string) {
	if m == nil {
		return
	}
	m.NotifyFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) StoreFailed(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) WSClientDelta(d float64) {
	if m == nil {
		return
	}
	m.WSClients.Add(d)
}

func (m *Metrics) Refreshed(class string, unix float64) {
	if m == nil {
		return
	}
	m.LastRefreshEpoch.WithLabelValues(class).Set(unix)
}
