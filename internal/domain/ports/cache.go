package ports

import (
	"context"
	"errors"
	"time"

	"fx-history-service/internal/domain/model"
)

// ErrCacheMiss is returned by a CacheStore when no item exists for a key.
var ErrCacheMiss = errors.New("cache miss")

// CacheStore is the raw key/value backend behind the rate cache.
type CacheStore interface {
	GetItem(ctx context.Context, key string) (*model.CacheItem, error)
	// PutItem overwrites any previous item. retention is a hint for how long
	// the backend may keep the item; freshness is decided by the caller.
	PutItem(ctx context.Context, key string, item model.CacheItem, retention time.Duration) error
	DeleteItem(ctx context.Context, key string) error
}

// RateCache maps request fingerprints to rate series with TTL expiry.
// Implementations never fail: backend problems surface as misses.
type RateCache interface {
	Get(ctx context.Context, key string) (model.RateSeries, bool)
	Put(ctx context.Context, key string, series model.RateSeries)
}
