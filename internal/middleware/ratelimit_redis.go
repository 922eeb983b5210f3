// ratelimit_redis.go provides a redis-backed rate limit middleware for
// multi-replica deployments. The in-memory token bucket in ratelimit.go only
// limits per process; when more than one replica serves traffic the effective
// limit multiplies by the replica count, so redis holds the shared buckets.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// NewRedisRateLimiter creates a redis_rate limiter sharing buckets across
// replicas.
func NewRedisRateLimiter(client *redis.Client) *redis_rate.Limiter {
	return redis_rate.NewLimiter(client)
}

// RedisRateLimitMiddleware enforces a shared per-client rate limit. On redis
// errors the request is allowed through; losing rate limiting briefly is
// better than serving 500s for every request during a redis blip.
func RedisRateLimitMiddleware(limiter *redis_rate.Limiter, requestsPerMinute, burst int) gin.HandlerFunc {
	limit := redis_rate.Limit{
		Rate:   requestsPerMinute,
		Period: time.Minute,
		Burst:  burst,
	}

	return func(c *gin.Context) {
		key := "ratelimit:" + getRateLimitKey(c)

		res, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(requestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
