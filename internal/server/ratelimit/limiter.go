// Package ratelimit throttles credential endpoints with a Redis token
// bucket keyed by client IP and route.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/taskboard/internal/clock"
	"github.com/dmitrijs2005/taskboard/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
  tokens = capacity
  last_refill = now_ms
end

local elapsed = math.max(0, now_ms - last_refill)
local intervals = math.floor(elapsed / interval_ms)
if intervals > 0 then
  tokens = math.min(capacity, tokens + intervals)
  last_refill = last_refill + (intervals * interval_ms)
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter allows perMinute requests per key with steady refill.
type Limiter struct {
	rdb      redis.UniversalClient
	clk      clock.Clock
	log      logging.Logger
	prefix   string
	capacity int
	interval time.Duration
}

// New returns a limiter with a bucket of perMinute tokens refilled one at a
// time across the minute. perMinute must be positive.
func New(rdb redis.UniversalClient, perMinute int, clk clock.Clock, log logging.Logger) *Limiter {
	return &Limiter{
		rdb:      rdb,
		clk:      clk,
		log:      log.With("module", "ratelimit"),
		prefix:   "rl",
		capacity: perMinute,
		interval: time.Minute / time.Duration(perMinute),
	}
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	ttl := int64(math.Ceil((time.Duration(l.capacity)*l.interval + time.Minute).Seconds()))
	res, err := bucketScript.Run(ctx, l.rdb, []string{l.prefix + ":" + key},
		l.clk.Now().UnixMilli(), l.capacity, l.interval.Milliseconds(), ttl,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis error: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("unexpected limiter result %v", res)
	}
	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  res[1],
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// Middleware rejects requests over the limit with 429. Redis failures let
// the request through.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := c.RealIP() + ":" + c.Request().Method + " " + c.Path()

			d, err := l.Allow(ctx, key)
			if err != nil {
				l.log.Warn(ctx, "rate limiter unavailable", "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))

			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}
