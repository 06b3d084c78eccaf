package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/internal/metrics"
	"github.com/shieldkit/shieldkit/store"
)

// Redis is a prefix-keyed Backend over a shared *redis.Client.
type Redis struct {
	rdb       *redis.Client
	keyPrefix string
	logger    *zap.Logger
	metrics   *metrics.Collector
	name      string
}

// NewRedis creates a Redis backend. keyPrefix is prepended to every key.
func NewRedis(rdb *redis.Client, keyPrefix string, logger *zap.Logger, m *metrics.Collector) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{rdb: rdb, keyPrefix: keyPrefix, logger: logger, metrics: m, name: "redis:" + keyPrefix}
}

func (r *Redis) key(k string) string { return r.keyPrefix + k }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.metrics.RecordCacheMiss(r.name)
			return nil, ErrMiss
		}
		return nil, err
	}
	r.metrics.RecordCacheHit(r.name)
	return data, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.key(key)).Err()
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	iter := r.rdb.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}

func (r *Redis) Update(ctx context.Context, key string, ttl time.Duration, fn func(current []byte, exists bool) ([]byte, bool, error)) error {
	return store.CASUpdate(ctx, r.rdb, r.key(key), ttl, func(current []byte, exists bool) ([]byte, error) {
		next, ok, err := fn(current, exists)
		if err != nil {
			return nil, err
		}
		if !ok {
			return current, store.ErrNoChange
		}
		return next, nil
	})
}
