package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	HistoricalRequestsTotal prometheus.Counter

	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheEvictionsTotal prometheus.Counter
	CacheErrorsTotal    *prometheus.CounterVec

	StoreQueriesTotal *prometheus.CounterVec
	IngestRunsTotal   *prometheus.CounterVec
}

// NewMetrics registers the service collectors on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		HistoricalRequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "historical_requests_total",
				Help: "Total number of historical exchange rate requests",
			},
		),

		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_cache_hits_total",
				Help: "Rate series served from the cache",
			},
		),

		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_cache_misses_total",
				Help: "Rate cache lookups that fell through to the store",
			},
		),

		CacheEvictionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_cache_evictions_total",
				Help: "Stale cache entries removed on read",
			},
		),

		CacheErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_cache_errors_total",
				Help: "Cache backend errors absorbed by the rate cache",
			},
			[]string{"operation"},
		),

		StoreQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_store_queries_total",
				Help: "Range queries issued against the time-series store",
			},
			[]string{"kind", "result"},
		),

		IngestRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_ingest_runs_total",
				Help: "Ingestion runs by outcome",
			},
			[]string{"result"},
		),
	}
}
