package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "kawiskita:geocode:"

// RedisCache 基于 Redis 的地理编码结果缓存。
//
// 缓存失败只记日志并退化为直接调用上游，不向调用方返回错误。
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache 创建 Redis 缓存。ttl <= 0 时使用 24 小时。
func NewRedisCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// Get 查询缓存。未命中或 Redis 出错时返回 (nil, false)。
func (c *RedisCache) Get(ctx context.Context, lat, lon string) (*Result, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, cacheKey(lat, lon)).Result()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("geocode cache get failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, false
	}
	return &res, true
}

// Set 写入缓存，写入失败只记日志。
func (c *RedisCache) Set(ctx context.Context, lat, lon string, res *Result) {
	if c == nil || c.rdb == nil || res == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(lat, lon), data, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("geocode cache set failed", slog.String("error", err.Error()))
	}
}

func cacheKey(lat, lon string) string {
	sum := sha256.Sum256([]byte(lat + "," + lon))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
