package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWithWindow increments the counter and starts its expiry window on the
// first failure, in one round trip.
var incrWithWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisStore keeps counters and lockout keys in Redis so the budget is
// shared across service instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps client as a limiter store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return incrWithWindow.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
}

func (s *RedisStore) Count(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (s *RedisStore) Lock(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, key, "1", ttl).Err()
}

func (s *RedisStore) LockTTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}

	return ttl, nil
}

func (s *RedisStore) Reset(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}
