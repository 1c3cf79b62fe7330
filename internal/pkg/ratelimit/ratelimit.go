package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/metrics"
)

// ErrWaitTimeout 表示在 ctx 到期前没有拿到令牌。
var ErrWaitTimeout = errors.New("rate limit wait timeout")

// 令牌桶脚本：按毫秒时间戳补充令牌，拿不到时返回建议等待的毫秒数。
// 状态存放在一个 Redis hash 里，多实例共享同一个桶。
const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

if rate <= 0 or burst <= 0 then
  return {1, 0, burst}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
local refill = (delta * rate) / 1000.0
tokens = math.min(burst, tokens + refill)

local allowed = tokens >= requested
local wait_ms = 0
if allowed then
  tokens = tokens - requested
else
  wait_ms = math.ceil((requested - tokens) * 1000.0 / rate)
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, wait_ms, tokens}
`

// Limiter 基于 Redis 的分布式令牌桶限流器。
//
// 主要用于限制对外部服务（如公共 Nominatim 实例）的请求速率，
// 所有进程实例共享同一个桶。
type Limiter struct {
	rdb    *redis.Client
	key    string
	rate   float64
	burst  float64
	logger *slog.Logger
	script *redis.Script
}

// NewRedisLimiter 创建限流器。
//
// 参数:
//   - rdb: Redis 客户端
//   - logger: 日志记录器（可为 nil）
//   - key: 桶在 Redis 中的键名
//   - rate: 每秒补充的令牌数
//   - burst: 桶容量
//
// 返回值:
//   - *Limiter: 限流器实例
func NewRedisLimiter(rdb *redis.Client, logger *slog.Logger, key string, rate float64, burst float64) *Limiter {
	if key == "" {
		key = "kawiskita:ratelimit:default"
	}
	return &Limiter{
		rdb:    rdb,
		key:    key,
		rate:   rate,
		burst:  burst,
		logger: logger,
		script: redis.NewScript(tokenBucketLua),
	}
}

// Acquire 阻塞直到拿到一个令牌或 ctx 被取消。
//
// nil 限流器或非正的 rate/burst 视为不限流，直接放行。
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.rate <= 0 || l.burst <= 0 {
		return nil
	}

	const jitterMax = 10 * time.Millisecond
	start := time.Now()
	for {
		allowed, waitMs, err := l.tryAcquire(ctx)
		if err != nil {
			return err
		}
		if allowed {
			metrics.RateLimitWaitSeconds.Observe(time.Since(start).Seconds())
			return nil
		}

		wait := time.Duration(waitMs) * time.Millisecond
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		// 加一点抖动，避免多个等待者同时醒来
		wait += time.Duration(rand.Int63n(int64(jitterMax)))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			metrics.RateLimitWaitSeconds.Observe(time.Since(start).Seconds())
			metrics.RateLimitTimeoutsTotal.Inc()
			return ErrWaitTimeout
		case <-timer.C:
		}
	}
}

// tryAcquire 执行一次令牌桶脚本，返回是否放行及建议等待的毫秒数。
func (l *Limiter) tryAcquire(ctx context.Context) (bool, int64, error) {
	now := time.Now().UnixMilli()
	res, err := l.script.Run(ctx, l.rdb, []string{l.key}, l.rate, l.burst, now, 1).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 2 {
		return false, 0, fmt.Errorf("ratelimit invalid result")
	}
	return toInt64(values[0]) == 1, toInt64(values[1]), nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
