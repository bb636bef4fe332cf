package adapters

import (
	"context"
	"testing"
	"time"

	"storefront-orders/internal/core/cache"
	"storefront-orders/internal/features/inventory/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisProductCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisAdapter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	pc := NewRedisProductCache(c, 5*time.Second)
	ctx := context.Background()

	got, err := pc.Get(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, got, "miss is not an error")

	p := &domain.Product{ID: "A", Name: "Mug", Price: decimal.RequireFromString("12.50"), StockCount: 4, InStock: true}
	require.NoError(t, pc.Save(ctx, p))
	assert.Equal(t, 5*time.Second, mr.TTL("product:A"))

	got, err = pc.Get(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Mug", got.Name)
	assert.Equal(t, 4, got.StockCount)
	assert.True(t, got.Price.Equal(p.Price))

	require.NoError(t, pc.Forget(ctx, "A"))
	assert.False(t, mr.Exists("product:A"))

	require.NoError(t, pc.Save(ctx, p))
	mr.FastForward(6 * time.Second)
	got, err = pc.Get(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, got, "expired copy is a miss")
}

func TestRedisProductCache_CorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisAdapter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, mr.Set("product:B", "not json"))

	_, err = NewRedisProductCache(c, time.Second).Get(context.Background(), "B")
	assert.Error(t, err)
}
