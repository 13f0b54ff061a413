package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const statsGenerationKey = "tickets:stats:gen"

// StatsCache stores dashboard aggregates in Redis. Entries are keyed by
// a generation counter bumped on every ticket mutation, so a mutation
// invalidates every scope's cached stats without enumerating scopes.
// Old generations age out via TTL. A nil *StatsCache is a no-op.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache constructs the cache.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatsCache{client: client, ttl: ttl}
}

// Get loads the cached stats for a scope into dest. A Redis failure is
// reported as a miss.
func (c *StatsCache) Get(ctx context.Context, scopeKey string, dest any) bool {
	if c == nil {
		return false
	}
	key, err := c.currentKey(ctx, scopeKey)
	if err != nil {
		return false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(payload, dest) == nil
}

// Set stores the stats for a scope under the current generation.
func (c *StatsCache) Set(ctx context.Context, scopeKey string, value any) error {
	if c == nil {
		return nil
	}
	key, err := c.currentKey(ctx, scopeKey)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate advances the generation, orphaning every cached scope.
func (c *StatsCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.client.Incr(ctx, statsGenerationKey).Err(); err != nil {
		return err
	}
	// keep the counter from outliving an idle cache indefinitely
	return c.client.Expire(ctx, statsGenerationKey, 24*time.Hour).Err()
}

func (c *StatsCache) currentKey(ctx context.Context, scopeKey string) (string, error) {
	gen, err := c.client.Get(ctx, statsGenerationKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("tickets:stats:v%d:%s", gen, scopeKey), nil
}
