package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to addr, which is either a redis:// URL or a plain
// host:port, and verifies the connection with PING.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	var opt *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisCache is a Cache backed by Redis string keys.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Get implements Cache.Get.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, Wrap("get cache key", key, err)
	}
	return b, true, nil
}

// Set implements Cache.Set. A nil value deletes the key; values never expire.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return Wrap("delete cache key", key, c.client.Del(ctx, key).Err())
	}
	return Wrap("set cache key", key, c.client.Set(ctx, key, value, 0).Err())
}

// SetMany implements Cache.SetMany inside a MULTI/EXEC transaction.
func (c *RedisCache) SetMany(ctx context.Context, entries map[string][]byte) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			if v := entries[k]; v != nil {
				p.Set(ctx, k, v, 0)
			} else {
				p.Del(ctx, k)
			}
		}
		return nil
	})
	return Wrap("set cache keys", strings.Join(keys, ","), err)
}
