package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/obs"
)

// DefaultCacheKey is the Redis key holding the cached product list.
const DefaultCacheKey = "storefront:catalog:products"

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// CachedCatalog serves products from Redis and falls back to Source on a
// miss. Cache errors are logged and never fail the request.
type CachedCatalog struct {
	Source Catalog
	Cache  *Cache
	Key    string
	Logger zerolog.Logger
}

// Products implements Catalog.
func (c CachedCatalog) Products(ctx context.Context) ([]Product, error) {
	key := c.Key
	if key == "" {
		key = DefaultCacheKey
	}
	var cached []Product
	hit, err := c.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		c.Logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_read_failed")
	}
	if hit {
		obs.ObserveCatalogFetch("cache", "hit")
		if cached == nil {
			cached = []Product{}
		}
		return cached, nil
	}

	products, err := c.Source.Products(ctx)
	if err != nil {
		return []Product{}, err
	}
	if err := c.Cache.SetJSON(ctx, key, products); err != nil {
		c.Logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_write_failed")
	}
	return products, nil
}
