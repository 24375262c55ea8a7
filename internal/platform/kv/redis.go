package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const maxUpdateAttempts = 5

// Redis stores values as plain strings under an optional namespace prefix.
type Redis struct {
	client    *redis.Client
	namespace string
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, namespace string) *Redis {
	return &Redis{client: client, namespace: namespace}
}

func (r *Redis) key(k string) string {
	if r.namespace == "" {
		return k
	}
	return r.namespace + ":" + k
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("platform/kv: redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("platform/kv: redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("platform/kv: redis del %s: %w", key, err)
	}
	return nil
}

// Update watches key and retries when another writer commits first.
func (r *Redis) Update(ctx context.Context, key string, fn UpdateFunc) error {
	k := r.key(key)
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Result()
		ok := true
		if errors.Is(err, redis.Nil) {
			ok, err = false, nil
		}
		if err != nil {
			return err
		}
		next, err := fn(cur, ok)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			return nil
		})
		return err
	}
	for i := 0; i < maxUpdateAttempts; i++ {
		err := r.client.Watch(ctx, txf, k)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s", ErrConflict, key)
}
