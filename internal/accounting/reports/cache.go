package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps rendered reports in Redis for a short TTL. A cache failure is
// never fatal; callers fall through to the database.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func (c *Cache) key(name string, parts ...string) string {
	key := "reports:" + name
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func (c *Cache) get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("report cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		c.logger.Warn("report cache decode failed", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("report cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("report cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached report. Called after postings change the
// ledger.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, "reports:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil && !errors.Is(err, redis.Nil) {
			c.logger.Warn("report cache invalidate failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("report cache scan failed", "error", err)
	}
}

func windowKey(from, to time.Time) string {
	return fmt.Sprintf("%s_%s", from.Format("20060102"), to.Format("20060102"))
}
