package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "homecall:call_history"

// RedisRepo persists call history as a Redis list.
//
// LPUSH keeps the list newest-first, so List is a single LRANGE with no
// client-side sorting. Writes are synchronous; a returned Append is visible to
// the next List.
type RedisRepo struct {
	rdb *redis.Client
	key string
}

func NewRedisRepo(rdb *redis.Client) *RedisRepo {
	return &RedisRepo{rdb: rdb, key: defaultRedisKey}
}

// WithKey overrides the list key, e.g. to namespace per user in shared
// instances.
func (r *RedisRepo) WithKey(key string) *RedisRepo {
	r.key = key
	return r
}

func (r *RedisRepo) Append(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("history: marshal entry: %w", err)
	}
	if err := r.rdb.LPush(ctx, r.key, raw).Err(); err != nil {
		return fmt.Errorf("history: redis append: %w", err)
	}
	return nil
}

func (r *RedisRepo) List(ctx context.Context) ([]Entry, error) {
	raws, err := r.rdb.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("history: redis list: %w", err)
	}
	out := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("history: decode entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
