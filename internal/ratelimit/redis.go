package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "hive:cooldown:"

// releaseScript удаляет ключ, только если в нём наш токен.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLimiter кулдаун как ключ с TTL: SET NX PX. Ключ сам исчезает по окончании окна.
type RedisLimiter struct {
	rdx *redis.Client
}

func NewRedisLimiter(rdx *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdx: rdx}
}

func (l *RedisLimiter) TryConsume(ctx context.Context, key Key, window time.Duration) (Decision, error) {
	if window <= 0 {
		return allow(), nil
	}

	rkey := redisKeyPrefix + key.String()
	token := uuid.NewString()
	ok, err := l.rdx.SetNX(ctx, rkey, token, window).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limiter: redis setnx %s: %w", key, err)
	}
	if ok {
		return Decision{Allowed: true, token: token}, nil
	}

	ttl, err := l.rdx.PTTL(ctx, rkey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limiter: redis pttl %s: %w", key, err)
	}
	// Ключ мог истечь между SETNX и PTTL.
	if ttl <= 0 {
		ttl = time.Millisecond
	}
	return Decision{RetryAfter: ttl}, nil
}

func (l *RedisLimiter) Release(ctx context.Context, key Key, d Decision) error {
	if !d.Allowed || d.token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.rdx, []string{redisKeyPrefix + key.String()}, d.token).Err(); err != nil {
		return fmt.Errorf("rate limiter: redis release %s: %w", key, err)
	}
	return nil
}
