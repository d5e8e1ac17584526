package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether the client identified by key may make another
// request now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a fixed-window limiter shared by every instance behind
// the load balancer.
type RedisLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

var redisFixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

func NewRedisLimiter(rdb redis.Scripter, limit int, window time.Duration, prefix string) *RedisLimiter {
	if limit <= 0 {
		limit = 120
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "agendoai:rl"
	}
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := redisFixedWindowScript.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	var count int64
	switch v := res.(type) {
	case int64:
		count = v
	case string:
		count, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("unexpected redis script result type %T", res)
	}
	return count <= int64(l.limit), nil
}

// LocalLimiter is a per-process token bucket per client key, used when no
// Redis is configured. Buckets idle for longer than it takes them to refill
// are dropped.
type LocalLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*localBucket
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type localBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

const minLocalIdle = 10 * time.Minute

func NewLocalLimiter(perMinute, burst int) *LocalLimiter {
	if perMinute <= 0 {
		perMinute = 120
	}
	if burst <= 0 {
		burst = perMinute
	}
	interval := time.Minute / time.Duration(perMinute)
	idle := time.Duration(burst) * interval
	if idle < minLocalIdle {
		idle = minLocalIdle
	}
	return &LocalLimiter{
		limiters: make(map[string]*localBucket),
		every:    rate.Every(interval),
		burst:    burst,
		idle:     idle,
		now:      time.Now,
	}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		for k, b := range l.limiters {
			if now.Sub(b.seen) >= l.idle {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.limiters[key]
	if !ok {
		b = &localBucket{lim: rate.NewLimiter(l.every, l.burst)}
		l.limiters[key] = b
	}
	b.seen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1), nil
}

// rateLimit keys clients by gin's ClientIP, which only honours forwarding
// headers from trusted proxies. It fails open when the limiter errors.
func rateLimit(l Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = c.Request.RemoteAddr
		}
		ok, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "rate limiter error", slog.Any("err", err))
			c.Next()
			return
		}
		if !ok {
			logger.InfoContext(c.Request.Context(), "rate limit exceeded", slog.String("client", key))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"outcome": "rate_limited", "message": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
