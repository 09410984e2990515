package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// incrWindow counts a request in the current window and arms the expiry on
// the first hit.
var incrWindow = redis.NewScript(`
    local n = redis.call("INCR", KEYS[1])
    if n == 1 then
        redis.call("PEXPIRE", KEYS[1], ARGV[1])
    end
    return n
`)

// RedisRateLimiter is a fixed-window counter shared by every instance.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r.limit <= 0 || r.window <= 0 {
		return true, nil
	}

	slot := r.now().UnixNano() / int64(r.window)
	windowKey := fmt.Sprintf("ratelimit:%s:%d", key, slot)

	n, err := incrWindow.Run(ctx, r.client, []string{windowKey}, r.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= r.limit, nil
}
