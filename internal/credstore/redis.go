package credstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketclient/internal/config"
)

// keyPrefix namespaces credential keys so the store can share a database with
// other client state.
const keyPrefix = "cred:"

// Redis stores credentials in a Redis database. Used by hosted web deployments
// where per-browser-session credentials live server-side.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to Redis from config and pings to verify connectivity
// before returning.
func NewRedis(cfg config.RedisConfig, sessionID string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return NewRedisWithClient(client, sessionID), nil
}

// NewRedisWithClient wraps an existing client. Tests use this with miniredis.
func NewRedisWithClient(client *redis.Client, sessionID string) *Redis {
	return &Redis{client: client, prefix: keyPrefix + sessionID + ":"}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		// redis.Nil and transport errors both read as "absent".
		return "", false
	}
	return v, true
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *Redis) SetMany(ctx context.Context, kv map[string]string) error {
	pairs := make([]any, 0, len(kv)*2)
	for k, v := range kv {
		pairs = append(pairs, r.prefix+k, v)
	}
	return r.client.MSet(ctx, pairs...).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
