package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "matchmaker:generated:"

// RedisCache caches generated category lists in redis, keyed by a SHA-256 of
// the input text. Generation is stochastic, so the cache also pins repeated
// identical requests to one category set for its TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, freeText string) ([]string, bool) {
	data, err := c.client.Get(ctx, cacheKey(freeText)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("generation cache read failed", zap.Error(err))
		return nil, false
	}

	var labels []string
	if err := json.Unmarshal([]byte(data), &labels); err != nil {
		c.logger.Warn("corrupt generation cache entry", zap.Error(err))
		return nil, false
	}

	return labels, true
}

func (c *RedisCache) Set(ctx context.Context, freeText string, labels []string) {
	data, err := json.Marshal(labels)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, cacheKey(freeText), data, c.ttl).Err(); err != nil {
		c.logger.Warn("generation cache write failed", zap.Error(err))
	}
}

func cacheKey(freeText string) string {
	sum := sha256.Sum256([]byte(freeText))
	return cacheKeyPrefix + fmt.Sprintf("%x", sum[:])
}
