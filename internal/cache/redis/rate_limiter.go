package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// slidingWindowScript trims expired entries, counts the remainder, and admits
// the request by adding a member only when under the limit. Runs atomically so
// concurrent callers cannot both claim the last slot.
//
// KEYS[1] window sorted set
// ARGV[1] now (unix nanoseconds)
// ARGV[2] window (nanoseconds)
// ARGV[3] limit
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, now - window)
local count = redis.call("ZCARD", KEYS[1])
if count < limit then
	redis.call("ZADD", KEYS[1], now, now)
	redis.call("PEXPIRE", KEYS[1], math.ceil(window / 1000000))
	return 1
end
return 0
`)

const rateLimitPoll = 50 * time.Millisecond

// RateLimiter implements domain.RateLimiter with a sliding-window counter per
// key under "tb:ratelimit:{key}". The defaults configured at construction
// apply to Wait; Allow takes explicit parameters.
type RateLimiter struct {
	rdb           *redis.Client
	defaultLimit  int
	defaultWindow time.Duration
}

// NewRateLimiter creates a RateLimiter with the given defaults for Wait.
func NewRateLimiter(c *Client, defaultLimit int, defaultWindow time.Duration) *RateLimiter {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	if defaultWindow <= 0 {
		defaultWindow = time.Second
	}
	return &RateLimiter{rdb: c.Underlying(), defaultLimit: defaultLimit, defaultWindow: defaultWindow}
}

func rateLimitKey(key string) string { return "tb:ratelimit:" + key }

// Allow reports whether a request under key is admitted within the
// sliding window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	res, err := slidingWindowScript.Run(ctx, rl.rdb,
		[]string{rateLimitKey(key)},
		time.Now().UnixNano(), window.Nanoseconds(), limit,
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return res == 1, nil
}

// Wait blocks until a slot is available under the default limit and window,
// or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		ok, err := rl.Allow(ctx, key, rl.defaultLimit, rl.defaultWindow)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-time.After(rateLimitPoll):
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
