package memory

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "chat:memory:"

// RedisBackend keeps each session in a list, oldest turn first.
type RedisBackend struct {
	client redis.Cmdable
}

func NewRedisBackend(client redis.Cmdable) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) Read(ctx context.Context, session string, limit int) ([]Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	values, err := r.client.LRange(ctx, redisKeyPrefix+session, start, -1).Result()
	if err != nil {
		return nil, err
	}

	turns := make([]Turn, 0, len(values))
	for _, v := range values {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil || !validRole(t.Role) {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (r *RedisBackend) Write(ctx context.Context, session string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]interface{}, len(turns))
	for i, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		values[i] = string(data)
	}
	return r.client.RPush(ctx, redisKeyPrefix+session, values...).Err()
}
