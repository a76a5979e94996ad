package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"fx-history-service/internal/domain/model"
	"fx-history-service/internal/domain/ports"
)

// MemoryStore is an in-process CacheStore backed by ristretto. It is used
// when no Redis is configured or reachable.
type MemoryStore struct {
	c *ristretto.Cache
}

func NewMemoryStore(maxCost int64) (*MemoryStore, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryStore{c: c}, nil
}

func (m *MemoryStore) GetItem(_ context.Context, key string) (*model.CacheItem, error) {
	v, found := m.c.Get(key)
	if !found {
		return nil, ports.ErrCacheMiss
	}

	item, ok := v.(model.CacheItem)
	if !ok {
		return nil, fmt.Errorf("unexpected cache value type %T", v)
	}
	return &item, nil
}

func (m *MemoryStore) PutItem(_ context.Context, key string, item model.CacheItem, retention time.Duration) error {
	cost := int64(len(item.Value))
	if cost == 0 {
		cost = 1
	}

	if !m.c.SetWithTTL(key, item, cost, retention) {
		return fmt.Errorf("memory cache rejected key %s", key)
	}
	// Sets are buffered; make the write visible to the next read.
	m.c.Wait()
	return nil
}

func (m *MemoryStore) DeleteItem(_ context.Context, key string) error {
	m.c.Del(key)
	return nil
}

// Close stops ristretto's background goroutines.
func (m *MemoryStore) Close() error {
	m.c.Close()
	return nil
}
