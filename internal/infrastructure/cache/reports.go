package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"stockroom/pkg/logger"
)

// ReportCache caches computed report payloads. Reports are recomputed on
// demand and never stored as state; the cache is a throughput optimization
// only, so every failure path degrades to a miss.
//
// A nil client disables the cache entirely.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewReportCache creates a report cache with the given TTL.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{
		client: client,
		ttl:    ttl,
		prefix: "reports:",
	}
}

// Enabled reports whether a Redis client is configured.
func (c *ReportCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get loads a cached report into dest. Returns false on miss, on a disabled
// cache, or on any Redis/decode failure.
func (c *ReportCache) Get(ctx context.Context, key string, dest any) bool {
	if !c.Enabled() {
		return false
	}

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn(ctx, "report cache get failed", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		logger.Warn(ctx, "report cache decode failed", "key", key, "error", err)
		return false
	}

	return true
}

// Set stores a report payload under key with the configured TTL.
// Failures are logged and swallowed; the caller already has the report.
func (c *ReportCache) Set(ctx context.Context, key string, value any) {
	if !c.Enabled() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn(ctx, "report cache encode failed", "key", key, "error", err)
		return
	}

	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "report cache set failed", "key", key, "error", err)
	}
}

// Invalidate drops cached reports matching the given keys.
func (c *ReportCache) Invalidate(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.prefix + k
	}

	if err := c.client.Del(ctx, prefixed...).Err(); err != nil {
		logger.Warn(ctx, "report cache invalidate failed", "keys", keys, "error", err)
	}
}
