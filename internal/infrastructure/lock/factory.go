package lock

import (
	"context"

	"github.com/redis/go-redis/v9"
	appexchange "github.com/shop/backend/internal/application/exchange"
	"github.com/shop/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// New returns the start lock configured by cfg, or nil when locking is
// disabled. When Redis is unreachable it falls back to an in-memory lock,
// which only serializes starts within this process. The returned client is
// nil unless Redis is used and must be closed by the caller.
func New(ctx context.Context, redisCfg config.RedisConfig, exchangeCfg config.ExchangeConfig, logger *zap.Logger) (appexchange.StartLock, *redis.Client) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !exchangeCfg.LockEnabled {
		return nil, nil
	}
	if !redisCfg.Enabled {
		logger.Info("Using in-memory start lock")
		return NewMemoryStartLock(exchangeCfg.LockTTL), nil
	}

	client, err := NewRedisClient(ctx, redisCfg)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory start lock. "+
			"Concurrent starts on other instances are then caught by the database only.",
			zap.String("addr", redisCfg.Addr()),
			zap.Error(err),
		)
		return NewMemoryStartLock(exchangeCfg.LockTTL), nil
	}
	logger.Info("Using Redis start lock", zap.String("addr", redisCfg.Addr()))
	return NewRedisStartLock(client, exchangeCfg.LockTTL), client
}
