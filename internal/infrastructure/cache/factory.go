package cache

import (
	"fmt"

	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewIdempotencyStore builds the store named by cfg.Store.
// A redis store needs a non-nil client.
func NewIdempotencyStore(cfg config.EventConfig, client redis.UniversalClient, logger *zap.Logger) (shared.IdempotencyStore, error) {
	switch cfg.Store {
	case config.StoreRedis:
		if client == nil {
			return nil, fmt.Errorf("redis idempotency store requires a redis client")
		}
		logger.Info("using redis idempotency store")
		return NewRedisIdempotencyStore(client, DefaultKeyPrefix), nil
	case config.StoreMemory, "":
		logger.Info("using in-memory idempotency store")
		return NewMemoryIdempotencyStore(), nil
	default:
		return nil, fmt.Errorf("unknown idempotency store %q", cfg.Store)
	}
}
