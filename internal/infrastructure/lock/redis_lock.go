// Package lock provides the cross-process start lock of import sessions.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	appexchange "github.com/shop/backend/internal/application/exchange"
	"github.com/shop/backend/internal/infrastructure/config"
)

const (
	defaultTTL       = 30 * time.Second
	defaultKeyPrefix = "shop:lock:"
)

var _ appexchange.StartLock = (*RedisStartLock)(nil)

// RedisStartLock implements appexchange.StartLock with a Redis lease.
// The lease expires after ttl so a crashed holder cannot block starts forever.
type RedisStartLock struct {
	locker    *redislock.Client
	ttl       time.Duration
	keyPrefix string
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisStartLock creates a lock over an existing client.
func NewRedisStartLock(client redis.UniversalClient, ttl time.Duration) *RedisStartLock {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStartLock{
		locker:    redislock.New(client),
		ttl:       ttl,
		keyPrefix: defaultKeyPrefix,
	}
}

// Acquire obtains the lease for key without waiting. A held lease returns
// appexchange.ErrStartLockHeld.
func (l *RedisStartLock) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	lease, err := l.locker.Obtain(ctx, l.keyPrefix+key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, appexchange.ErrStartLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		err := lease.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}
