package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/raushankrgupta/fitly-shop-links/models"
)

// Cache stores search results keyed by query and band. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]models.ProductLink, bool, error)
	Set(ctx context.Context, key string, links []models.ProductLink) error
}

// RedisCache keeps JSON-encoded results in Redis with a fixed TTL.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "fitly:search:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]models.ProductLink, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var links []models.ProductLink
	if err := json.Unmarshal(raw, &links); err != nil {
		return nil, false, fmt.Errorf("decode cached links: %w", err)
	}
	return links, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, links []models.ProductLink) error {
	raw, err := json.Marshal(links)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// cacheKey is stable for a given mode, query and band.
func cacheKey(mode Mode, query string, band *PriceBand) string {
	b := "none"
	if band != nil {
		b = fmt.Sprintf("%d-%d", band.Min, band.Max)
	}
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%s", mode, query, b)))
	return hex.EncodeToString(sum[:])
}
