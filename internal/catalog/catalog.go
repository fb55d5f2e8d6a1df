// Package catalog supplies the unit cost snapshotted when a product is first
// counted. The product catalog itself is owned elsewhere; this package only
// reads it, optionally through a Redis cache.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/cellarcount/cellarcount-backend/pkg/logger"
)

// Source returns the current unit cost of a product. Unknown products fail
// with errors.ProductNotFound.
type Source interface {
	UnitCost(ctx context.Context, organizationID, productID string) (decimal.Decimal, error)
}

// CachedSource is a read-through Redis cache in front of a Source. Redis
// failures fall back to the source and are only logged.
type CachedSource struct {
	source Source
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedSource creates a new cached unit-cost source
func NewCachedSource(source Source, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedSource {
	return &CachedSource{
		source: source,
		client: client,
		ttl:    ttl,
		logger: log.WithComponent("unit-cost-cache"),
	}
}

func costKey(organizationID, productID string) string {
	return fmt.Sprintf("unit_cost:%s:%s", organizationID, productID)
}

// UnitCost returns the cached cost or loads and caches it
func (c *CachedSource) UnitCost(ctx context.Context, organizationID, productID string) (decimal.Decimal, error) {
	key := costKey(organizationID, productID)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cost, parseErr := decimal.NewFromString(cached); parseErr == nil {
			return cost, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding unparsable cached unit cost")
	case err != redis.Nil:
		c.logger.Warn().Err(err).Str("product_id", productID).Msg("unit cost cache read failed")
	}

	cost, err := c.source.UnitCost(ctx, organizationID, productID)
	if err != nil {
		return decimal.Zero, err
	}

	if err := c.client.Set(ctx, key, cost.String(), c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("product_id", productID).Msg("unit cost cache write failed")
	}
	return cost, nil
}

// Invalidate drops a cached cost, e.g. after a catalog price change
func (c *CachedSource) Invalidate(ctx context.Context, organizationID, productID string) error {
	return c.client.Del(ctx, costKey(organizationID, productID)).Err()
}

// Health reports the cache connection status
func (c *CachedSource) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return map[string]string{"status": "down", "error": err.Error()}
	}
	return map[string]string{"status": "up"}
}
