package lock

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/stockfolio/backend/config"
	"github.com/stockfolio/backend/utils"
)

const demoResetKey = "lock:demo_reset"

// RedisLock serializes the destructive demo reset. The key expires after
// cfg.Demo.LockTTL so a crashed holder cannot wedge the endpoint.
type RedisLock struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisLock(redisClient *redis.Client, cfg *config.Config) *RedisLock {
	return &RedisLock{redis: redisClient, cfg: cfg}
}

func (l *RedisLock) AcquireDemoReset(ctx context.Context) (bool, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	ok, err := l.redis.SetNX(ctx, demoResetKey, 1, l.cfg.Demo.LockTTL).Result()
	if err != nil {
		slog.Error("failed on redis.SetNX", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return false, err
	}

	return ok, nil
}

func (l *RedisLock) ReleaseDemoReset(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	_, err := l.redis.Del(ctx, demoResetKey).Result()
	if err != nil {
		slog.Error("failed on redis.Del", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	return nil
}
