package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront-orders/internal/core/cache"
	"storefront-orders/internal/features/inventory/domain"
)

const productCachePrefix = "product:"

// RedisProductCache implements ports.ProductCache on the shared cache.
type RedisProductCache struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewRedisProductCache creates a new RedisProductCache.
func NewRedisProductCache(c cache.Cache, ttl time.Duration) *RedisProductCache {
	return &RedisProductCache{cache: c, ttl: ttl}
}

// Get returns the cached product, or nil when there is none.
func (r *RedisProductCache) Get(ctx context.Context, id string) (*domain.Product, error) {
	data, err := r.cache.Get(ctx, productCachePrefix+id)
	if errors.Is(err, cache.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product from cache: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return &p, nil
}

// Save stores product for the configured TTL.
func (r *RedisProductCache) Save(ctx context.Context, product *domain.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	if err := r.cache.Set(ctx, productCachePrefix+product.ID, data, r.ttl); err != nil {
		return fmt.Errorf("failed to save product to cache: %w", err)
	}
	return nil
}

// Forget drops the cached copy of id.
func (r *RedisProductCache) Forget(ctx context.Context, id string) error {
	if err := r.cache.Delete(ctx, productCachePrefix+id); err != nil {
		return fmt.Errorf("failed to delete product from cache: %w", err)
	}
	return nil
}
