// Package cache puts a Redis read-through cache in front of catalog lookups.
// Availability data is never cached: slots and bookings always read the
// ledger.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/store"
)

const keyPrefix = "agendoai:catalog:"

// Client is the subset of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type CatalogCache struct {
	next   store.Catalog
	rdb    Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ store.Catalog = (*CatalogCache)(nil)

// NewCatalogCache wraps next. A nil rdb disables caching.
func NewCatalogCache(next store.Catalog, rdb Client, ttl time.Duration, logger *slog.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CatalogCache{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "catalog_cache")),
	}
}

func (c *CatalogCache) GetProvider(ctx context.Context, id string) (domain.Provider, error) {
	return readThrough(ctx, c, "provider:"+id, func(ctx context.Context) (domain.Provider, error) {
		return c.next.GetProvider(ctx, id)
	})
}

func (c *CatalogCache) GetService(ctx context.Context, id string) (domain.Service, error) {
	return readThrough(ctx, c, "service:"+id, func(ctx context.Context) (domain.Service, error) {
		return c.next.GetService(ctx, id)
	})
}

// readThrough serves from Redis when it can. Redis failures degrade to the
// backing catalog; misses (ErrNotFound) are not cached.
func readThrough[T any](ctx context.Context, c *CatalogCache, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if c.rdb == nil {
		return load(ctx)
	}
	key = keyPrefix + key

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
			return v, nil
		}
		c.logger.Warn("discarding undecodable cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("catalog cache read failed", slog.String("key", key), slog.Any("err", err))
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	if b, err := json.Marshal(v); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.logger.Warn("catalog cache write failed", slog.String("key", key), slog.Any("err", err))
		}
	}
	return v, nil
}
