package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper 基于 SETNX 的幂等锁，保证同一 handler 对同一实体只处理一次
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func dedupKey(handler string, id int64) string {
	return fmt.Sprintf("dedup:%s:%d", handler, id)
}

// AcquireOnce returns true the first time handler sees id and false for duplicates.
func (d *Deduper) AcquireOnce(ctx context.Context, handler string, id int64) bool {
	key := dedupKey(handler, id)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// redis 不可用时不阻止处理
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.Int64("id", id),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.Int64("id", id),
			zap.String("dedup_key", key),
		)
	}

	return ok
}

// Release 处理失败后释放锁，让重投的消息可以再次处理
func (d *Deduper) Release(ctx context.Context, handler string, id int64) {
	if err := d.rdb.Del(ctx, dedupKey(handler, id)).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("handler", handler),
			zap.Int64("id", id),
			zap.Error(err),
		)
	}
}
