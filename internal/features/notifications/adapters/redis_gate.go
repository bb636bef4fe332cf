package adapters

import (
	"context"
	"fmt"
	"time"

	"storefront-orders/internal/core/cache"
)

const sendGateKey = "notify:send-gate"

// RedisSendGate spaces provider calls by holding a short-lived key.
// Whoever sets the key may send; it expires after the configured spacing.
type RedisSendGate struct {
	cache   cache.Cache
	spacing time.Duration
	poll    time.Duration
}

// NewRedisSendGate creates a gate allowing one send per spacing interval.
func NewRedisSendGate(c cache.Cache, spacing time.Duration) *RedisSendGate {
	poll := spacing / 6
	if poll < 10*time.Millisecond {
		poll = 10 * time.Millisecond
	}
	return &RedisSendGate{cache: c, spacing: spacing, poll: poll}
}

// Acquire waits for the gate key to be free and takes it.
func (g *RedisSendGate) Acquire(ctx context.Context) error {
	if g.spacing <= 0 {
		return nil
	}

	for {
		ok, err := g.cache.SetNX(ctx, sendGateKey, []byte("1"), g.spacing)
		if err != nil {
			return fmt.Errorf("send gate unavailable: %w", err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.poll):
		}
	}
}
