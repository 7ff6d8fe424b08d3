// Package cache provides the Redis-backed per-user reconciliation lease.
// Reconciliation re-reads all state from the store on every invocation, so
// no user or credential data is ever cached here.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/ports"
)

type RedisLock struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisLock(url string, log *zap.Logger) (*RedisLock, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Successfully connected to Redis")
	return &RedisLock{
		client: client,
		log:    log,
	}, nil
}

var _ ports.ReconcileLock = (*RedisLock)(nil)

// Acquire takes a lease with a TTL so a crashed holder cannot wedge a user
// forever. Returns false when another instance holds the lease.
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, "lock:"+key, 1, ttl).Result()
}

func (l *RedisLock) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, "lock:"+key).Err()
}

func (l *RedisLock) Close() error {
	return l.client.Close()
}
