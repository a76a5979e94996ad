package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fx-history-service/internal/domain/model"
	"fx-history-service/internal/domain/ports"
)

const redisKeyPrefix = "fxhistory:series:"

// RedisStore is a CacheStore on Redis. Each key holds a JSON envelope with
// the serialized series and the time it was stored.
type RedisStore struct {
	rdb redis.UniversalClient
}

type redisEnvelope struct {
	Value     json.RawMessage `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisStoreFromClient(rdb), nil
}

func NewRedisStoreFromClient(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (r *RedisStore) GetItem(ctx context.Context, key string) (*model.CacheItem, error) {
	b, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache envelope: %w", err)
	}

	return &model.CacheItem{Value: env.Value, StoredAt: env.Timestamp}, nil
}

func (r *RedisStore) PutItem(ctx context.Context, key string, item model.CacheItem, retention time.Duration) error {
	b, err := json.Marshal(redisEnvelope{Value: item.Value, Timestamp: item.StoredAt.UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal cache envelope: %w", err)
	}

	if err := r.rdb.Set(ctx, redisKeyPrefix+key, b, retention).Err(); err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", key, err)
	}
	return nil
}

func (r *RedisStore) DeleteItem(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Health(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
