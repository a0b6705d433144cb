package cache

import (
	"context"
	"fmt"
)

// DefaultBasketKeyPrefix matches the key layout of the basket service.
const DefaultBasketKeyPrefix = "/basket/"

// BasketCache removes buyer baskets owned by the basket service.
// Key format: "{prefix}{buyerID}"
type BasketCache struct {
	client *RedisClient
	prefix string
}

// NewBasketCache creates a BasketCache backed by the given RedisClient.
// An empty prefix falls back to DefaultBasketKeyPrefix.
func NewBasketCache(r *RedisClient, prefix string) *BasketCache {
	if prefix == "" {
		prefix = DefaultBasketKeyPrefix
	}
	return &BasketCache{client: r, prefix: prefix}
}

// Delete removes the buyer's basket. Deleting a missing basket is not an
// error, so redelivered events are harmless.
func (c *BasketCache) Delete(ctx context.Context, buyerID string) error {
	if buyerID == "" {
		return fmt.Errorf("basket delete: empty buyer id")
	}
	if err := c.client.Client().Del(ctx, c.Key(buyerID)).Err(); err != nil {
		return fmt.Errorf("basket delete: %w", err)
	}
	return nil
}

// Key returns the Redis key holding the buyer's basket.
func (c *BasketCache) Key(buyerID string) string {
	return c.prefix + buyerID
}
