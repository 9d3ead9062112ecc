package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Submission rate limit key pattern:
// - ratelimit:{origin}:{session_id}:responses - sorted set of submission times, TTL = window

// slidingWindowScript trims entries older than the window, then admits the action
// only while fewer than limit entries remain.
var slidingWindowScript = goredis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
	local current = redis.call('ZCARD', key)
	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window)
		return 1
	end
	return 0
`)

// RateLimiter is a sliding-window limiter shared by every server process using the same Redis.
type RateLimiter struct {
	client *goredis.Client
	limit  int
	window time.Duration
	seq    atomic.Uint64
}

func NewRateLimiter(client *goredis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func RateLimitKey(key string) string {
	return fmt.Sprintf("ratelimit:%s:responses", key)
}

// Allow records one action for key if the window still has room.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixMilli()
	member := strconv.FormatInt(now, 10) + "-" + strconv.FormatUint(r.seq.Add(1), 10)

	res, err := slidingWindowScript.Run(ctx, r.client, []string{RateLimitKey(key)},
		now, r.window.Milliseconds(), r.limit, member).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return res == 1, nil
}

// Reset clears the window for key (admin operation).
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, RateLimitKey(key)).Err()
}
