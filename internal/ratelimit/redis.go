package ratelimit

import (
	"context"
	"fmt"
	"github.com/redis/go-redis/v9"
	"time"
)

// incrScript increments counter and starts its window on first attempt.
// It returns count and window time left in milliseconds.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter shares counters between instances
type RedisLimiter struct {
	rdb redis.Scripter
}

// NewRedisLimiter creates new RedisLimiter
func NewRedisLimiter(rdb redis.Scripter) *RedisLimiter {
	return &RedisLimiter{rdb: rdb}
}

// Allow counts attempt in current window of key
func (l *RedisLimiter) Allow(ctx context.Context, key Key, policy Policy) (Result, error) {
	vals, err := incrScript.Run(ctx, l.rdb, []string{key.String()}, policy.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("rate limit %s: unexpected reply %v", key, vals)
	}

	return result(int(vals[0]), policy, time.Duration(vals[1])*time.Millisecond), nil
}
