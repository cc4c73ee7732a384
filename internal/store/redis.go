package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces game keys inside a shared Redis.
const DefaultRedisPrefix = "plinko:"

// Redis stores each key as a plain string value and commits batches inside
// MULTI/EXEC.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client. The client is not closed by Close.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *Redis) Apply(ctx context.Context, batch []Write) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, w := range batch {
			pipe.Set(ctx, r.prefix+w.Key, w.Value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis exec: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return nil }
