// Package cache wraps Redis for the read-heavy billing views.
//
// A nil *Redis is valid and behaves as an always-missing cache, so the
// server runs unchanged when Redis is not configured or unreachable.
package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client *redis.Client
}

// New connects to addr. It returns nil (not an error) when the server
// cannot be reached, logging the failure.
func New(addr, password string) *Redis {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[Cache] redis at %s unavailable, caching disabled: %v", addr, err)
		client.Close()
		return nil
	}
	log.Printf("[Cache] connected to redis at %s", addr)
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	if r == nil {
		return nil, false
	}
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (r *Redis) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if r == nil {
		return
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Printf("[Cache] set %s failed: %v", key, err)
	}
}

func (r *Redis) Delete(ctx context.Context, keys ...string) {
	if r == nil || len(keys) == 0 {
		return
	}
	r.client.Del(ctx, keys...)
}

// DeletePattern removes every key matching pattern. It walks the keyspace
// with SCAN so a large cache does not block the server.
func (r *Redis) DeletePattern(ctx context.Context, pattern string) {
	if r == nil {
		return
	}
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("[Cache] scan %s failed: %v", pattern, err)
		return
	}
	if len(keys) > 0 {
		r.client.Del(ctx, keys...)
	}
}

// IsHealthy reports whether the cache is configured and answering pings.
func (r *Redis) IsHealthy(ctx context.Context) bool {
	if r == nil {
		return false
	}
	return r.client.Ping(ctx).Err() == nil
}

func (r *Redis) Close() error {
	if r == nil {
		return nil
	}
	return r.client.Close()
}
