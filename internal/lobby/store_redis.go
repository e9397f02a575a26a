package lobby

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const redisCountsKey = "lobby:connections"

// clampIncr increments a hash field and floors it at zero in one round trip.
var clampIncr = redis.NewScript(`
local v = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
if v < 0 then
  redis.call('HSET', KEYS[1], ARGV[1], 0)
  v = 0
end
return v
`)

type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, key: redisCountsKey}
}

func (s *RedisStore) Adjust(ctx context.Context, roomID string, delta int) error {
	return clampIncr.Run(ctx, s.rdb, []string{s.key}, roomID, delta).Err()
}

func (s *RedisStore) Reset(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

func (s *RedisStore) Counts(ctx context.Context) (map[string]int, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(vals))
	for room, v := range vals {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("lobby: bad count for room %s: %w", room, err)
		}
		out[room] = n
	}
	return out, nil
}
