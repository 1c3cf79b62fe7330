package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const sessionActiveKeyPrefix = "kawiskita:session:active:"

// SessionActivityMiddleware refreshes a per-user activity marker in Redis
// so sessions can be expired on idle.
func SessionActivityMiddleware(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := GetSession(c)
		if s == nil {
			c.Next()
			return
		}

		if ttl <= 0 {
			ttl = 30 * time.Minute
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		key := fmt.Sprintf("%s%d", sessionActiveKeyPrefix, s.UserID)
		_ = rdb.Set(ctx, key, "1", ttl).Err()

		c.Next()
	}
}
