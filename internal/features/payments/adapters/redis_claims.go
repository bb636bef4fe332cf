package adapters

import (
	"context"
	"time"

	"storefront-orders/internal/core/cache"
)

const claimKeyPrefix = "webhook:event:"

// RedisEventClaims implements ports.EventClaims with SETNX keys.
type RedisEventClaims struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewRedisEventClaims creates claims that expire after ttl.
func NewRedisEventClaims(c cache.Cache, ttl time.Duration) *RedisEventClaims {
	return &RedisEventClaims{cache: c, ttl: ttl}
}

// Claim reports whether this caller now owns the event.
func (r *RedisEventClaims) Claim(ctx context.Context, eventID string) (bool, error) {
	return r.cache.SetNX(ctx, claimKeyPrefix+eventID, []byte(time.Now().UTC().Format(time.RFC3339)), r.ttl)
}

// Release frees the claim so a redelivery can process the event.
func (r *RedisEventClaims) Release(ctx context.Context, eventID string) error {
	return r.cache.Delete(ctx, claimKeyPrefix+eventID)
}
