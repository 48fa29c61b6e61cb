package dns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// MemoryCache keeps verdicts in an in-process LRU with expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, bool]
}

// NewMemoryCache holds up to size verdicts for ttl each.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[string, bool](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (bool, bool) {
	return c.lru.Get(key)
}

func (c *MemoryCache) Set(_ context.Context, key string, verified bool) {
	c.lru.Add(key, verified)
}

const redisPrefix = "geoshock:verify:"

// RedisCache shares verdicts across instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache connects to url (redis://...) and pings it.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (bool, bool) {
	val, err := c.client.Get(ctx, redisPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("dns: cache read failed", "err", err)
		}
		return false, false
	}
	return val == "1", true
}

func (c *RedisCache) Set(ctx context.Context, key string, verified bool) {
	val := "0"
	if verified {
		val = "1"
	}
	if err := c.client.Set(ctx, redisPrefix+key, val, c.ttl).Err(); err != nil {
		c.logger.Warn("dns: cache write failed", "err", err)
	}
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
