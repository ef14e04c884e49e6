package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/vendor-analytics/internal/config"
)

const keyPrefix = "analytics:"

// AnalyticsCache holds read results of the API between pipeline runs.
// Every committed run invalidates the whole keyspace.
type AnalyticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	InvalidateAll(ctx context.Context) error
}

type redisAnalyticsCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopAnalyticsCache struct{}

// NewAnalyticsCache connects to redis when caching is enabled and falls back
// to a no-op cache otherwise.
func NewAnalyticsCache(cfg config.CacheConfig) (AnalyticsCache, error) {
	if !cfg.Enabled {
		return &noopAnalyticsCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisAnalyticsCache(client, ttl), nil
}

// InvalidateFor drops every cached analytics read for the configured cache.
// Processes that commit a run without serving reads, such as the CLI, call it
// so a running server does not keep stale entries until their TTL.
func InvalidateFor(ctx context.Context, cfg config.CacheConfig) error {
	if !cfg.Enabled {
		return nil
	}
	c, err := NewAnalyticsCache(cfg)
	if err != nil {
		return err
	}
	if rc, ok := c.(*redisAnalyticsCache); ok {
		defer rc.client.Close()
	}
	return c.InvalidateAll(ctx)
}

func NewRedisAnalyticsCache(client *redis.Client, ttl time.Duration) AnalyticsCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisAnalyticsCache{client: client, ttl: ttl}
}

func NewNoopAnalyticsCache() AnalyticsCache {
	return &noopAnalyticsCache{}
}

func (c *redisAnalyticsCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

func (c *redisAnalyticsCache) Set(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisAnalyticsCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, keyPrefix)
}

func (n *noopAnalyticsCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return false, nil
}

func (n *noopAnalyticsCache) Set(ctx context.Context, key string, value interface{}) error {
	return nil
}

func (n *noopAnalyticsCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// Key builds a cache key for a resource and its query parameters. Empty
// parameters are ignored; the rest are hashed so keys stay short.
func Key(resource string, params ...string) string {
	var parts []string
	for _, p := range params {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) == 0 {
		return keyPrefix + resource + ":default"
	}

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%s%s:%s", keyPrefix, resource, hex.EncodeToString(hash[:]))
}

// Fetch returns the cached value for key, or loads, stores and returns it.
// Cache failures are logged and never fail the read.
func Fetch[T any](ctx context.Context, c AnalyticsCache, key string, load func() (T, error)) (T, error) {
	var cached T
	if ok, err := c.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache get failed")
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	if err := c.Set(ctx, key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return value, nil
}
