// Package memory implements the convergence engine's MemoryRepository port:
// durable recall of bandit posterior state and trajectory success/failure
// summaries, namespaced per task.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore implements convergence.MemoryRepository on Redis, grounded on
// gomind's pkg/memory RedisMemory (buildKey namespacing, default TTL,
// redis.Nil handling).
type RedisStore struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewRedisStore dials redisURL and verifies connectivity, matching
// gomind's NewRedisMemory constructor shape.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, defaultTTL: 30 * 24 * time.Hour}, nil
}

// NewRedisStoreWithClient wraps an already-constructed client — used by
// tests against miniredis.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, defaultTTL: 30 * 24 * time.Hour}
}

func buildKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

func (r *RedisStore) Store(ctx context.Context, namespace, key string, value []byte) error {
	if err := r.client.Set(ctx, buildKey(namespace, key), value, r.defaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to store key %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (r *RedisStore) Retrieve(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, buildKey(namespace, key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to retrieve key %s/%s: %w", namespace, key, err)
	}
	return data, true, nil
}

func (r *RedisStore) Delete(ctx context.Context, namespace, key string) error {
	if err := r.client.Del(ctx, buildKey(namespace, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s/%s: %w", namespace, key, err)
	}
	return nil
}

// List scans all keys under namespace via Redis SCAN (not KEYS — avoids
// blocking a shared instance under real namespace fan-out), returning
// bare keys with the namespace prefix stripped.
func (r *RedisStore) List(ctx context.Context, namespace string) ([]string, error) {
	prefix := namespace + ":"
	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan namespace %s: %w", namespace, err)
		}
		for _, k := range batch {
			keys = append(keys, k[len(prefix):])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// SetDefaultTTL overrides the store's TTL for subsequent Store calls,
// mirroring gomind's SetTTL.
func (r *RedisStore) SetDefaultTTL(ttl time.Duration) {
	r.defaultTTL = ttl
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
