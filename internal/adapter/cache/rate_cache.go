package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"fx-history-service/internal/domain/model"
	"fx-history-service/internal/domain/ports"
	"fx-history-service/internal/metrics"
	"fx-history-service/pkg/logger"
)

// DefaultTTL is how long a computed series stays fresh.
const DefaultTTL = 24 * time.Hour

// RateCache keeps computed rate series in a CacheStore and decides freshness
// itself: an entry is served only while now < storedAt + ttl. Stale entries
// are deleted lazily when a read finds them; there is no sweeper.
//
// The cache is an optimisation only. Backend errors and timeouts turn into
// misses on Get and are swallowed on Put.
type RateCache struct {
	store   ports.CacheStore
	ttl     time.Duration
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*RateCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *RateCache) { c.now = now }
}

func NewRateCache(store ports.CacheStore, ttl, timeout time.Duration, log *logger.Logger, m *metrics.Metrics, opts ...Option) *RateCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &RateCache{
		store:   store,
		ttl:     ttl,
		timeout: timeout,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RateCache) Get(ctx context.Context, key string) (model.RateSeries, bool) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	item, err := c.store.GetItem(callCtx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			c.metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
			c.log.Warn("Cache read failed, treating as miss", "key", key, "error", err)
		}
		c.miss(key)
		return nil, false
	}

	if !c.now().Before(item.StoredAt.Add(c.ttl)) {
		c.log.Debug("Cache entry expired", "key", key, "stored_at", item.StoredAt)
		c.metrics.CacheEvictionsTotal.Inc()
		go c.evict(key)
		c.miss(key)
		return nil, false
	}

	var series model.RateSeries
	if err := json.Unmarshal(item.Value, &series); err != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues("decode").Inc()
		c.log.Warn("Cache entry undecodable, treating as miss", "key", key, "error", err)
		c.miss(key)
		return nil, false
	}

	c.metrics.CacheHitsTotal.Inc()
	c.log.Debug("Cache hit", "key", key)
	return series, true
}

func (c *RateCache) Put(ctx context.Context, key string, series model.RateSeries) {
	payload, err := json.Marshal(series)
	if err != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues("encode").Inc()
		c.log.Error("Failed to encode rate series for cache", "key", key, "error", err)
		return
	}

	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	item := model.CacheItem{Value: payload, StoredAt: c.now()}
	if err := c.store.PutItem(callCtx, key, item, 2*c.ttl); err != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues("put").Inc()
		c.log.Error("Failed to write cache entry", "key", key, "error", err)
		return
	}

	c.log.Debug("Cache set", "key", key, "points", len(series))
}

// evict runs detached from the request so a slow delete never delays a read.
func (c *RateCache) evict(key string) {
	ctx, cancel := c.withTimeout(context.Background())
	defer cancel()

	if err := c.store.DeleteItem(ctx, key); err != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues("delete").Inc()
		c.log.Error("Failed to remove expired cache entry", "key", key, "error", err)
		return
	}
	c.log.Debug("Removed expired cache entry", "key", key)
}

func (c *RateCache) miss(key string) {
	c.metrics.CacheMissesTotal.Inc()
	c.log.Debug("Cache miss", "key", key)
}

func (c *RateCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
