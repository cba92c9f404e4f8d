package banlist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "banlist:"

// RedisStore persists the ban list in Redis so bans survive restarts and
// apply across instances. Each ban is one key carrying its JSON metadata.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("banlist: redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (st *RedisStore) IsBanned(ctx context.Context, address string) (bool, error) {
	n, err := st.client.Exists(ctx, redisKeyPrefix+address).Result()
	if err != nil {
		return false, fmt.Errorf("banlist: exists %s: %w", address, err)
	}
	return n > 0, nil
}

func (st *RedisStore) Ban(ctx context.Context, address string, meta Meta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("banlist: marshal meta: %w", err)
	}
	if err := st.client.Set(ctx, redisKeyPrefix+address, data, 0).Err(); err != nil {
		return fmt.Errorf("banlist: ban %s: %w", address, err)
	}
	return nil
}

func (st *RedisStore) Unban(ctx context.Context, address string) error {
	if err := st.client.Del(ctx, redisKeyPrefix+address).Err(); err != nil {
		return fmt.Errorf("banlist: unban %s: %w", address, err)
	}
	return nil
}

func (st *RedisStore) All(ctx context.Context) ([]string, error) {
	var out []string
	iter := st.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val()[len(redisKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return out, fmt.Errorf("banlist: scan: %w", err)
	}
	return out, nil
}

func (st *RedisStore) Close() error {
	return st.client.Close()
}
